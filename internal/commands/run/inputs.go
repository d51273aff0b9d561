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
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/tombee/conductor-googleforms/internal/commands/shared"
	"github.com/tombee/conductor-googleforms/internal/integration/googleforms"
	"github.com/tombee/conductor-googleforms/internal/operation/api"
)

// itemFlags describes the input items of a run.
type itemFlags struct {
	itemsFile  string
	resource   string
	operation  string
	formID     string
	responseID string
	watchID    string
	query      []string
	body       string
}

// singleItemFlags maps flag names to parameter names.
var singleItemFlags = map[string]string{
	"resource":    googleforms.ParamResource,
	"operation":   googleforms.ParamOperation,
	"form-id":     googleforms.ParamFormID,
	"response-id": googleforms.ParamResponseID,
	"watch-id":    googleforms.ParamWatchID,
	"query":       googleforms.ParamQueryParameters,
	"body":        googleforms.ParamRequestBody,
}

// loadItems returns the items named by --items, or the single item described
// by the other flags. changed reports whether a flag was set explicitly.
func loadItems(stdin io.Reader, f itemFlags, changed func(string) bool) ([]googleforms.Parameters, error) {
	var set []string
	for flag := range singleItemFlags {
		if changed(flag) {
			set = append(set, flag)
		}
	}
	sort.Strings(set)

	if f.itemsFile != "" {
		if len(set) > 0 {
			return nil, shared.NewInvalidInputError(fmt.Sprintf("--items cannot be combined with --%s", set[0]), nil)
		}
		return readItemsFile(stdin, f.itemsFile)
	}

	if !changed("operation") && !changed("resource") {
		return nil, shared.NewInvalidInputError("either --items or --operation is required", nil)
	}

	item, err := f.parameters(changed)
	if err != nil {
		return nil, shared.NewInvalidInputError("invalid item flags", err)
	}
	return []googleforms.Parameters{item}, nil
}

func readItemsFile(stdin io.Reader, path string) ([]googleforms.Parameters, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, shared.NewInvalidInputError("failed to read items", err)
	}

	items, err := googleforms.DecodeItemsYAML(data)
	if err != nil {
		return nil, shared.NewInvalidInputError("failed to decode items", err)
	}
	if len(items) == 0 {
		return nil, shared.NewInvalidInputError(fmt.Sprintf("no items in %s", path), nil)
	}
	return items, nil
}

// parameters resolves the explicitly set flags through the parameter schema.
func (f itemFlags) parameters(changed func(string) bool) (googleforms.Parameters, error) {
	raw := map[string]interface{}{}
	values := map[string]string{
		"resource":    f.resource,
		"operation":   f.operation,
		"form-id":     f.formID,
		"response-id": f.responseID,
		"watch-id":    f.watchID,
		"body":        f.body,
	}
	for flag, value := range values {
		if changed(flag) {
			raw[singleItemFlags[flag]] = value
		}
	}

	if len(f.query) > 0 {
		query, err := parseQuery(f.query)
		if err != nil {
			return googleforms.Parameters{}, err
		}
		raw[googleforms.ParamQueryParameters] = query
	}

	return googleforms.ResolveParameters(raw)
}

// parseQuery converts key=value pairs into ordered query parameters. Values
// that read as booleans or numbers keep that type.
func parseQuery(pairs []string) (googleforms.QueryParameters, error) {
	query := make(googleforms.QueryParameters, 0, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --query %q: expected key=value", pair)
		}
		query = append(query, api.QueryParam{Key: key, Value: scalar(value)})
	}
	return query, nil
}

func scalar(s string) interface{} {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}
