package googleforms

import (
	"net/http"
	"slices"
	"strings"
)

// Resource is a top-level Google Forms API category.
type Resource string

const (
	ResourceForms         Resource = "forms"
	ResourceFormResponses Resource = "formResponses"
	ResourceFormWatches   Resource = "formWatches"
)

// Resources lists the resources in display order.
var Resources = []Resource{ResourceForms, ResourceFormResponses, ResourceFormWatches}

// Parameter names shared by the schema, the request builder and validation messages.
const (
	ParamResource        = "resource"
	ParamOperation       = "operation"
	ParamFormID          = "formId"
	ParamResponseID      = "responseId"
	ParamWatchID         = "watchId"
	ParamQueryParameters = "queryParameters"
	ParamRequestBody     = "requestBody"
)

// OperationSpec is one row of the dispatch table.
type OperationSpec struct {
	Name        string
	Resource    Resource
	DisplayName string
	Action      string
	Description string

	// Path is relative to the API base URL; placeholders are {formId},
	// {responseId} and {watchId}.
	Path string

	// Required lists the identifier parameters that must be non-empty, in
	// the order they are checked.
	Required []string

	Method string

	// Body reports whether requestBody is parsed and sent.
	Body bool
}

// Tags classifies the operation for listings.
func (s OperationSpec) Tags() []string {
	switch s.Method {
	case http.MethodGet:
		return []string{"read"}
	case http.MethodDelete:
		return []string{"write", "destructive"}
	default:
		return []string{"write"}
	}
}

var operationTable = []OperationSpec{
	{
		Name:        "formsBatchUpdatePost",
		Resource:    ResourceForms,
		DisplayName: "Batch Update Form",
		Action:      "Changes the form with a batch of updates",
		Description: "Changes the form with a batch of updates",
		Path:        "/forms/{formId}:batchUpdate",
		Required:    []string{ParamFormID},
		Method:      http.MethodPost,
		Body:        true,
	},
	{
		Name:        "formsCreatePost",
		Resource:    ResourceForms,
		DisplayName: "Create Form",
		Action:      "Creates a new form",
		Description: "Creates a new form using the title given in the provided form message in the request",
		Path:        "/forms",
		Method:      http.MethodPost,
		Body:        true,
	},
	{
		Name:        "formsGet",
		Resource:    ResourceForms,
		DisplayName: "Get Form",
		Action:      "Gets a form",
		Description: "Gets a form",
		Path:        "/forms/{formId}",
		Required:    []string{ParamFormID},
		Method:      http.MethodGet,
	},
	{
		Name:        "formsPublishSettingsUpdatePost",
		Resource:    ResourceForms,
		DisplayName: "Update Publish Settings",
		Action:      "Updates the publish settings",
		Description: "Updates the publish settings of a form",
		Path:        "/forms/{formId}:setPublishSettings",
		Required:    []string{ParamFormID},
		Method:      http.MethodPost,
		Body:        true,
	},
	{
		Name:        "formResponsesGet",
		Resource:    ResourceFormResponses,
		DisplayName: "Get Response",
		Action:      "Gets a response",
		Description: "Gets a response from the form",
		Path:        "/forms/{formId}/responses/{responseId}",
		Required:    []string{ParamFormID, ParamResponseID},
		Method:      http.MethodGet,
	},
	{
		Name:        "formResponsesList",
		Resource:    ResourceFormResponses,
		DisplayName: "List Responses",
		Action:      "Lists responses",
		Description: "List form responses",
		Path:        "/forms/{formId}/responses",
		Required:    []string{ParamFormID},
		Method:      http.MethodGet,
	},
	{
		Name:        "formWatchesCreatePost",
		Resource:    ResourceFormWatches,
		DisplayName: "Create Watch",
		Action:      "Creates a new watch",
		Description: "Creates a new watch",
		Path:        "/forms/{formId}/watches",
		Required:    []string{ParamFormID},
		Method:      http.MethodPost,
		Body:        true,
	},
	{
		Name:        "formWatchesDelete",
		Resource:    ResourceFormWatches,
		DisplayName: "Delete Watch",
		Action:      "Deletes a watch",
		Description: "Deletes a watch",
		Path:        "/forms/{formId}/watches/{watchId}",
		Required:    []string{ParamFormID, ParamWatchID},
		Method:      http.MethodDelete,
	},
	{
		Name:        "formWatchesList",
		Resource:    ResourceFormWatches,
		DisplayName: "List Watches",
		Action:      "Lists watches",
		Description: "Returns a list of the watches owned by the invoking project",
		Path:        "/forms/{formId}/watches",
		Required:    []string{ParamFormID},
		Method:      http.MethodGet,
	},
	{
		Name:        "formWatchesRenewPost",
		Resource:    ResourceFormWatches,
		DisplayName: "Renew Watch",
		Action:      "Renews a watch",
		Description: "Renews an existing watch for seven days",
		Path:        "/forms/{formId}/watches/{watchId}:renew",
		Required:    []string{ParamFormID, ParamWatchID},
		Method:      http.MethodPost,
	},
}

var operationIndex = func() map[string]OperationSpec {
	idx := make(map[string]OperationSpec, len(operationTable))
	for _, spec := range operationTable {
		idx[spec.Name] = spec
	}
	return idx
}()

// LookupOperation returns the table row for an operation name.
func LookupOperation(name string) (OperationSpec, bool) {
	spec, ok := operationIndex[name]
	return spec, ok
}

// OperationSpecs returns every operation in display order.
func OperationSpecs() []OperationSpec {
	out := make([]OperationSpec, len(operationTable))
	copy(out, operationTable)
	return out
}

// OperationsFor returns the operations of a resource in display order.
func OperationsFor(resource Resource) []OperationSpec {
	var out []OperationSpec
	for _, spec := range operationTable {
		if spec.Resource == resource {
			out = append(out, spec)
		}
	}
	return out
}

// DefaultOperation returns the operation preselected for a resource.
func DefaultOperation(resource Resource) string {
	if ops := OperationsFor(resource); len(ops) > 0 {
		return ops[0].Name
	}
	return ""
}

// MethodForOperation derives the HTTP method from the operation name suffix.
func MethodForOperation(name string) string {
	switch {
	case strings.HasSuffix(name, "Delete"):
		return http.MethodDelete
	case strings.HasSuffix(name, "Patch"):
		return http.MethodPatch
	case strings.HasSuffix(name, "Post"):
		return http.MethodPost
	default:
		return http.MethodGet
	}
}

func isValidResource(r Resource) bool {
	return slices.Contains(Resources, r)
}

// fieldLabel is the display name used in validation messages.
func fieldLabel(param string) string {
	switch param {
	case ParamFormID:
		return "Form ID"
	case ParamResponseID:
		return "Response ID"
	case ParamWatchID:
		return "Watch ID"
	case ParamResource:
		return "Resource"
	case ParamOperation:
		return "Operation"
	case ParamRequestBody:
		return "Request Body"
	default:
		return param
	}
}
