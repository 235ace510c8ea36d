package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearthd/hearth-core/internal/rules"
)

// lookupKeyFrom parses the ?by query parameter shared by the /rules/{ident}
// endpoints. Only "id" and "name" are accepted; empty defaults to "id".
func lookupKeyFrom(r *http.Request) (rules.LookupKey, error) {
	return rules.ParseLookupKey(r.URL.Query().Get("by"))
}

// handleListRules returns every rule in the store, enabled or not.
func (s *Server) handleListRules(w http.ResponseWriter, _ *http.Request) {
	if s.rules == nil {
		writeUnavailable(w, "rules")
		return
	}

	list := s.rules.List()
	writeEnvelope(w, http.StatusOK, "获取成功", map[string]any{
		"rules": list,
		"count": len(list),
	})
}

// handleGetRule returns a single rule addressed by ID or by name.
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		writeUnavailable(w, "rules")
		return
	}

	key, err := lookupKeyFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "无效的查找方式 'by' 参数，请使用 'id' 或 'name'")
		return
	}

	ident := chi.URLParam(r, "ident")
	rule, err := s.rules.Get(ident, key)
	if err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("未找到 %s 为 '%s' 的规则", key, ident))
			return
		}
		writeDomainError(w, err)
		return
	}

	writeEnvelope(w, http.StatusOK, "获取成功", rule)
}

// handleCreateRule validates and persists a new rule. The store assigns
// an ID when the body has none, rewrites the rules file, and fires its
// change notification — which reloads the evaluator and reconciles bus
// subscriptions before this handler returns.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		writeUnavailable(w, "rules")
		return
	}

	var rule rules.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "请求必须是 JSON 格式")
		return
	}

	stored, err := s.rules.Add(&rule)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.auditLog("create", "rule", stored.ID, subjectFrom(r.Context()), map[string]any{
		"name":    stored.Name,
		"enabled": stored.Enabled,
	})

	writeEnvelope(w, http.StatusCreated, "创建成功", stored)
}

// handleUpdateRule replaces a rule addressed by ID or by name.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		writeUnavailable(w, "rules")
		return
	}

	key, err := lookupKeyFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "无效的查找方式 'by' 参数，请使用 'id' 或 'name'")
		return
	}

	var rule rules.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "请求必须是 JSON 格式")
		return
	}

	ident := chi.URLParam(r, "ident")
	updated, err := s.rules.Modify(ident, &rule, key)
	if err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("未找到 %s 为 '%s' 的规则", key, ident))
			return
		}
		writeDomainError(w, err)
		return
	}

	s.auditLog("update", "rule", updated.ID, subjectFrom(r.Context()), map[string]any{
		"name":    updated.Name,
		"enabled": updated.Enabled,
	})

	writeEnvelope(w, http.StatusOK, "更新成功", updated)
}

// handleDeleteRule removes a rule addressed by ID or by name.
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		writeUnavailable(w, "rules")
		return
	}

	key, err := lookupKeyFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "无效的查找方式 'by' 参数，请使用 'id' 或 'name'")
		return
	}

	ident := chi.URLParam(r, "ident")
	if err := s.rules.Delete(ident, key); err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("未找到 %s 为 '%s' 的规则", key, ident))
			return
		}
		writeDomainError(w, err)
		return
	}

	s.auditLog("delete", "rule", ident, subjectFrom(r.Context()), map[string]any{
		"by": string(key),
	})

	writeEnvelope(w, http.StatusOK, "规则已删除", nil)
}
