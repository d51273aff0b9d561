package googleforms

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/tombee/conductor-googleforms/internal/operation/api"
)

// Node identity.
const (
	NodeName        = "googleForms"
	NodeDisplayName = "Google Forms"

	// ConnectorName is the registry name of the integration.
	ConnectorName = "googleforms"

	// DeclaredBaseURL is the base URL advertised in the node's request
	// defaults. Requests are always built against APIBaseURL.
	DeclaredBaseURL = "https://datastudio.googleapis.com/v1"
)

// NodeDescription describes the node to the host.
type NodeDescription struct {
	Name            string                  `json:"name"`
	DisplayName     string                  `json:"displayName"`
	Group           []string                `json:"group"`
	Version         int                     `json:"version"`
	Description     string                  `json:"description"`
	Defaults        map[string]string       `json:"defaults"`
	Icon            string                  `json:"icon"`
	Inputs          []string                `json:"inputs"`
	Outputs         []string                `json:"outputs"`
	UsableAsTool    bool                    `json:"usableAsTool"`
	Credentials     []CredentialRequirement `json:"credentials"`
	RequestDefaults RequestDefaults         `json:"requestDefaults"`
	Properties      []Property              `json:"properties"`
}

// CredentialRequirement names a credential type the node uses.
type CredentialRequirement struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// RequestDefaults are the declared defaults applied by hosts that issue
// declarative requests.
type RequestDefaults struct {
	BaseURL string            `json:"baseURL"`
	Headers map[string]string `json:"headers"`
}

// Property is one parameter in the node's UI schema.
type Property struct {
	DisplayName      string                 `json:"displayName"`
	Name             string                 `json:"name"`
	Type             string                 `json:"type"`
	NoDataExpression bool                   `json:"noDataExpression,omitempty"`
	Required         bool                   `json:"required,omitempty"`
	Default          interface{}            `json:"default"`
	Description      string                 `json:"description,omitempty"`
	Placeholder      string                 `json:"placeholder,omitempty"`
	DisplayOptions   *DisplayOptions        `json:"displayOptions,omitempty"`
	Options          []PropertyOption       `json:"options,omitempty"`
	Fields           []Property             `json:"fields,omitempty"`
	TypeOptions      map[string]interface{} `json:"typeOptions,omitempty"`
}

// PropertyOption is one choice of an options-typed property.
type PropertyOption struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Action      string `json:"action,omitempty"`
	Description string `json:"description,omitempty"`
}

// DisplayOptions shows a property only when other parameters hold given values.
type DisplayOptions struct {
	Show map[string][]string `json:"show"`
}

var resourceOptions = []PropertyOption{
	{Name: "Form", Value: string(ResourceForms), Description: "Manages forms"},
	{Name: "Form Response", Value: string(ResourceFormResponses), Description: "Manages form responses"},
	{Name: "Form Watch", Value: string(ResourceFormWatches), Description: "Manages form watches"},
}

// Describe returns the node description.
func Describe() NodeDescription {
	props := []Property{{
		DisplayName:      "Resource",
		Name:             ParamResource,
		Type:             "options",
		NoDataExpression: true,
		Required:         true,
		Default:          string(ResourceForms),
		Options:          resourceOptions,
	}}

	for _, r := range Resources {
		var opts []PropertyOption
		for _, spec := range OperationsFor(r) {
			opts = append(opts, PropertyOption{
				Name:        spec.DisplayName,
				Value:       spec.Name,
				Action:      spec.Action,
				Description: spec.Description,
			})
		}
		props = append(props, Property{
			DisplayName:      "Operation",
			Name:             ParamOperation,
			Type:             "options",
			NoDataExpression: true,
			Required:         true,
			Default:          DefaultOperation(r),
			DisplayOptions:   &DisplayOptions{Show: map[string][]string{ParamResource: {string(r)}}},
			Options:          opts,
		})
	}

	props = append(props,
		idProperty(ParamFormID, "The ID of the form"),
		idProperty(ParamResponseID, "The response ID within the form"),
		idProperty(ParamWatchID, "The ID of the watch"),
		Property{
			DisplayName: "Query Parameters",
			Name:        ParamQueryParameters,
			Type:        "collection",
			Placeholder: "Add Parameter",
			Default:     map[string]interface{}{},
			Fields:      queryFields,
		},
		Property{
			DisplayName:    "Request Body",
			Name:           ParamRequestBody,
			Type:           "json",
			Default:        DefaultRequestBody,
			DisplayOptions: &DisplayOptions{Show: map[string][]string{ParamOperation: operationsWhere(func(s OperationSpec) bool { return s.Body })}},
		},
	)

	return NodeDescription{
		Name:         NodeName,
		DisplayName:  NodeDisplayName,
		Group:        []string{"transform"},
		Version:      1,
		Description:  "Use the Google Forms API",
		Defaults:     map[string]string{"name": NodeDisplayName},
		Icon:         "file:googleforms.svg",
		Inputs:       []string{"main"},
		Outputs:      []string{"main"},
		UsableAsTool: true,
		Credentials:  []CredentialRequirement{{Name: CredentialName, Required: true}},
		RequestDefaults: RequestDefaults{
			BaseURL: DeclaredBaseURL,
			Headers: map[string]string{"Content-Type": "application/json"},
		},
		Properties: props,
	}
}

func idProperty(name, description string) Property {
	return Property{
		DisplayName: fieldLabel(name),
		Name:        name,
		Type:        "string",
		Default:     "",
		Description: description,
		DisplayOptions: &DisplayOptions{Show: map[string][]string{
			ParamOperation: operationsWhere(func(s OperationSpec) bool { return slices.Contains(s.Required, name) }),
		}},
	}
}

func operationsWhere(pred func(OperationSpec) bool) []string {
	var names []string
	for _, spec := range operationTable {
		if pred(spec) {
			names = append(names, spec.Name)
		}
	}
	return names
}

var queryFields = []Property{
	{DisplayName: "Filter", Name: "filter", Type: "string", Default: "", Description: "Which form responses to return"},
	{DisplayName: "Unpublished", Name: "unpublished", Type: "boolean", Default: false, Description: "Whether the form is unpublished"},
	{DisplayName: "Page Size", Name: "pageSize", Type: "number", Default: 5000, Description: "The number of results to include per page"},
	{DisplayName: "Page Token", Name: "pageToken", Type: "string", Default: "", Description: "A token identifying a page of results to return", TypeOptions: map[string]interface{}{"password": true}},
}

// QueryParametersSchema returns the JSON Schema of the queryParameters collection.
// Known options are typed; any other key may hold a scalar.
func QueryParametersSchema() *jsonschema.Schema {
	props := make(map[string]*jsonschema.Schema, len(queryFields))
	for _, f := range queryFields {
		def, _ := json.Marshal(f.Default)
		props[f.Name] = &jsonschema.Schema{
			Type:        f.Type,
			Description: f.Description,
			Default:     json.RawMessage(def),
		}
	}

	return &jsonschema.Schema{
		Type:                 "object",
		Description:          "Query string parameters; falsy values are omitted",
		Properties:           props,
		AdditionalProperties: &jsonschema.Schema{Types: []string{"string", "number", "boolean", "null"}},
	}
}

// ParameterSchema returns the JSON Schema of a full item parameter set.
func ParameterSchema() *jsonschema.Schema {
	resources := make([]any, 0, len(Resources))
	for _, r := range Resources {
		resources = append(resources, string(r))
	}
	operations := make([]any, 0, len(operationTable))
	for _, spec := range operationTable {
		operations = append(operations, spec.Name)
	}

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			ParamResource:        {Type: "string", Enum: resources, Default: json.RawMessage(`"forms"`)},
			ParamOperation:       {Type: "string", Enum: operations},
			ParamFormID:          {Type: "string", Description: "The ID of the form"},
			ParamResponseID:      {Type: "string", Description: "The response ID within the form"},
			ParamWatchID:         {Type: "string", Description: "The ID of the watch"},
			ParamQueryParameters: QueryParametersSchema(),
			ParamRequestBody:     requestBodySchema(),
		},
	}
}

// OperationInputSchema returns the JSON Schema of one operation's inputs.
func OperationInputSchema(name string) (*jsonschema.Schema, bool) {
	spec, ok := LookupOperation(name)
	if !ok {
		return nil, false
	}

	props := map[string]*jsonschema.Schema{
		ParamQueryParameters: QueryParametersSchema(),
	}
	for _, field := range spec.Required {
		props[field] = &jsonschema.Schema{Type: "string", Description: fmt.Sprintf("%s (required)", fieldLabel(field))}
	}
	if spec.Body {
		props[ParamRequestBody] = requestBodySchema()
	}

	return &jsonschema.Schema{
		Type:        "object",
		Description: spec.Description,
		Properties:  props,
		Required:    append([]string(nil), spec.Required...),
	}, true
}

func requestBodySchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Types:       []string{"string", "object", "array"},
		Description: "JSON request body, as text or inline JSON",
		Default:     json.RawMessage(`"{}"`),
	}
}

var (
	querySchemaOnce sync.Once
	querySchema     *jsonschema.Resolved
	querySchemaErr  error
)

func resolvedQuerySchema() (*jsonschema.Resolved, error) {
	querySchemaOnce.Do(func() {
		querySchema, querySchemaErr = QueryParametersSchema().Resolve(&jsonschema.ResolveOptions{})
	})
	return querySchema, querySchemaErr
}

// validateQueryParameters checks a query collection against QueryParametersSchema.
func validateQueryParameters(m map[string]interface{}) error {
	resolved, err := resolvedQuerySchema()
	if err != nil {
		return fmt.Errorf("resolve query parameter schema: %w", err)
	}

	// Validate the JSON form so Go numeric types are seen as JSON numbers.
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return err
	}

	return resolved.Validate(instance)
}

// ResolveParameters applies schema defaults to a raw parameter map and
// validates its types. Unknown keys are ignored.
func ResolveParameters(raw map[string]interface{}) (Parameters, error) {
	p := DefaultParameters()

	for key, value := range raw {
		switch key {
		case ParamResource:
			s, err := stringParam(key, value)
			if err != nil {
				return Parameters{}, err
			}
			p.Resource = Resource(s)
		case ParamOperation:
			s, err := stringParam(key, value)
			if err != nil {
				return Parameters{}, err
			}
			p.Operation = s
		case ParamFormID, ParamResponseID, ParamWatchID:
			s, err := stringParam(key, value)
			if err != nil {
				return Parameters{}, err
			}
			switch key {
			case ParamFormID:
				p.FormID = s
			case ParamResponseID:
				p.ResponseID = s
			default:
				p.WatchID = s
			}
		case ParamQueryParameters:
			q, err := queryParam(value)
			if err != nil {
				return Parameters{}, err
			}
			p.QueryParameters = q
		case ParamRequestBody:
			b, err := bodyParam(value)
			if err != nil {
				return Parameters{}, err
			}
			p.RequestBody = b
		}
	}

	p.fillSelector()
	return p, nil
}

func stringParam(key string, value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case float64, int, int64, json.Number:
		s, _ := api.QueryValue(v)
		return s, nil
	default:
		return "", &ValidationError{Field: key, Message: fmt.Sprintf("%s must be a string, got %T", key, value)}
	}
}

func queryParam(value interface{}) (QueryParameters, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case QueryParameters:
		if err := validateQueryParameters(v.Map()); err != nil {
			return nil, &ValidationError{Field: ParamQueryParameters, Message: fmt.Sprintf("invalid queryParameters: %v", err)}
		}
		return v, nil
	case map[string]interface{}:
		if err := validateQueryParameters(v); err != nil {
			return nil, &ValidationError{Field: ParamQueryParameters, Message: fmt.Sprintf("invalid queryParameters: %v", err)}
		}
		return QueryParametersFromMap(v), nil
	default:
		return nil, &ValidationError{Field: ParamQueryParameters, Message: fmt.Sprintf("queryParameters must be an object, got %T", value)}
	}
}

func bodyParam(value interface{}) (RequestBody, error) {
	switch v := value.(type) {
	case string:
		return RequestBody(v), nil
	case RequestBody:
		return v, nil
	default:
		text, err := json.Marshal(v)
		if err != nil {
			return "", &ValidationError{Field: ParamRequestBody, Message: fmt.Sprintf("requestBody cannot be expressed as JSON: %v", err)}
		}
		return RequestBody(text), nil
	}
}
