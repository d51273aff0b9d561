// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package run

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tombee/conductor-googleforms/internal/commands/shared"
	"github.com/tombee/conductor-googleforms/internal/integration/googleforms"
)

// changedSet returns a Changed func reporting the given flag names.
func changedSet(names ...string) func(string) bool {
	set := map[string]bool{}
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestLoadItems_FromFlags(t *testing.T) {
	f := itemFlags{
		operation: "formResponsesList",
		formID:    "abc",
		query:     []string{"pageSize=10", "filter=timestamp > 2025-01-01T00:00:00Z", "unpublished=false"},
	}

	items, err := loadItems(strings.NewReader(""), f, changedSet("operation", "form-id", "query"))
	if err != nil {
		t.Fatalf("loadItems() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	p := items[0]
	if p.Resource != googleforms.ResourceFormResponses {
		t.Errorf("resource = %q, want formResponses", p.Resource)
	}
	if p.FormID != "abc" {
		t.Errorf("formId = %q", p.FormID)
	}
	if p.RequestBody != googleforms.DefaultRequestBody {
		t.Errorf("requestBody = %q, want default", p.RequestBody)
	}

	wantKeys := []string{"pageSize", "filter", "unpublished"}
	if len(p.QueryParameters) != len(wantKeys) {
		t.Fatalf("query = %+v", p.QueryParameters)
	}
	for i, key := range wantKeys {
		if p.QueryParameters[i].Key != key {
			t.Errorf("query[%d] = %q, want %q", i, p.QueryParameters[i].Key, key)
		}
	}
	if v, _ := p.QueryParameters.Get("pageSize"); v != int64(10) {
		t.Errorf("pageSize = %#v, want int64(10)", v)
	}
	if v, _ := p.QueryParameters.Get("unpublished"); v != false {
		t.Errorf("unpublished = %#v, want false", v)
	}
}

func TestLoadItems_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.yaml")
	content := `- operation: formsGet
  formId: one
- operation: formWatchesRenewPost
  formId: two
  watchId: w1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	items, err := loadItems(strings.NewReader(""), itemFlags{itemsFile: path}, changedSet("items"))
	if err != nil {
		t.Fatalf("loadItems() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[1].Resource != googleforms.ResourceFormWatches || items[1].WatchID != "w1" {
		t.Errorf("second item = %+v", items[1])
	}
}

func TestLoadItems_FromStdin(t *testing.T) {
	stdin := strings.NewReader(`[{"operation":"formsGet","formId":"x"}]`)

	items, err := loadItems(stdin, itemFlags{itemsFile: "-"}, changedSet("items"))
	if err != nil {
		t.Fatalf("loadItems() error = %v", err)
	}
	if len(items) != 1 || items[0].FormID != "x" {
		t.Errorf("items = %+v", items)
	}
}

func TestLoadItems_Errors(t *testing.T) {
	tests := []struct {
		name    string
		flags   itemFlags
		changed []string
		errText string
	}{
		{
			name:    "nothing selected",
			changed: nil,
			errText: "either --items or --operation is required",
		},
		{
			name:    "items combined with item flags",
			flags:   itemFlags{itemsFile: "-", formID: "x"},
			changed: []string{"items", "form-id"},
			errText: "cannot be combined with --form-id",
		},
		{
			name:    "malformed query",
			flags:   itemFlags{operation: "formsGet", query: []string{"pageSize"}},
			changed: []string{"operation", "query"},
			errText: "expected key=value",
		},
		{
			name:    "query fails schema",
			flags:   itemFlags{operation: "formResponsesList", query: []string{"pageSize=many"}},
			changed: []string{"operation", "query"},
			errText: "queryParameters",
		},
		{
			name:    "missing file",
			flags:   itemFlags{itemsFile: "/nonexistent/items.yaml"},
			changed: []string{"items"},
			errText: "failed to read items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadItems(strings.NewReader(""), tt.flags, changedSet(tt.changed...))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.errText)
			}
			var exitErr *shared.ExitError
			if !errors.As(err, &exitErr) || exitErr.Code != shared.ExitInvalidInput {
				t.Errorf("expected invalid input exit error, got %v", err)
			}
		})
	}
}

func TestScalar(t *testing.T) {
	tests := []struct {
		in   string
		want interface{}
	}{
		{"true", true},
		{"false", false},
		{"42", int64(42)},
		{"1.5", 1.5},
		{"NaN", "NaN"},
		{"", ""},
		{"abc", "abc"},
	}
	for _, tt := range tests {
		if got := scalar(tt.in); got != tt.want {
			t.Errorf("scalar(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}
