package device

import (
	"errors"
	"reflect"
	"testing"
)

func TestRenderPayload(t *testing.T) {
	tests := []struct {
		name     string
		template any
		params   map[string]any
		want     any
		wantErr  error
	}{
		{
			name:     "integer param coerces to int",
			template: map[string]any{"mode": "cool", "target": "{t}"},
			params:   map[string]any{"t": float64(22)},
			want:     map[string]any{"mode": "cool", "target": int64(22)},
		},
		{
			name:     "fractional param coerces to float",
			template: map[string]any{"target": "{t}"},
			params:   map[string]any{"t": 22.5},
			want:     map[string]any{"target": 22.5},
		},
		{
			name:     "string param stays string",
			template: map[string]any{"mode": "{m}"},
			params:   map[string]any{"m": "eco"},
			want:     map[string]any{"mode": "eco"},
		},
		{
			name:     "plain string passes through uncoerced",
			template: map[string]any{"code": "42"},
			params:   nil,
			want:     map[string]any{"code": "42"},
		},
		{
			name:     "non-string values pass through",
			template: map[string]any{"enabled": true, "level": float64(7)},
			params:   nil,
			want:     map[string]any{"enabled": true, "level": float64(7)},
		},
		{
			name:     "nested object passes through",
			template: map[string]any{"opts": map[string]any{"unit": "{u}"}},
			params:   nil,
			want:     map[string]any{"opts": map[string]any{"unit": "{u}"}},
		},
		{
			name:     "multiple placeholders in one string",
			template: map[string]any{"range": "{lo}-{hi}"},
			params:   map[string]any{"lo": float64(18), "hi": float64(24)},
			want:     map[string]any{"range": "18-24"},
		},
		{
			name:     "missing parameter",
			template: map[string]any{"target": "{t}"},
			params:   map[string]any{},
			wantErr:  ErrMissingParam,
		},
		{
			name:     "nil params with placeholder",
			template: map[string]any{"target": "{t}"},
			params:   nil,
			wantErr:  ErrMissingParam,
		},
		{
			name:     "non-object template returned as-is",
			template: "toggle",
			params:   map[string]any{"t": 1},
			want:     "toggle",
		},
		{
			name:     "nil template returned as-is",
			template: nil,
			params:   nil,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderPayload(tt.template, tt.params)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("RenderPayload() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("RenderPayload() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RenderPayload() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestRenderPayload_Deterministic(t *testing.T) {
	template := map[string]any{"mode": "cool", "target": "{t}", "fan": "{speed}"}
	params := map[string]any{"t": float64(21), "speed": "auto"}

	first, err := RenderPayload(template, params)
	if err != nil {
		t.Fatalf("RenderPayload() error = %v", err)
	}
	second, err := RenderPayload(template, params)
	if err != nil {
		t.Fatalf("RenderPayload() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("RenderPayload() not deterministic: %#v vs %#v", first, second)
	}
}
