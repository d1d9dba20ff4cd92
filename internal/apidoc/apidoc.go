// Package apidoc builds the OpenAPI description of the configured domains.
package apidoc

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mesh-intelligence/ideate/pkg/types"
)

// OpenAPIVersion is the document format emitted by Build.
const OpenAPIVersion = "3.0.3"

// Shared component schema names.
const (
	ErrorSchema   = "Error"
	MessageSchema = "Message"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SchemaName returns the component name used for a domain schema of the
// given role ("Entity", "Create" or "Update").
func SchemaName(domain, role string) string {
	return unsafeName.ReplaceAllString(domain, "_") + "." + role
}

func ref(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

// Build returns an OpenAPI document covering every domain in specs.
// Operations disabled by a domain's features are omitted.
func Build(version string, specs ...*types.DomainSpec) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: OpenAPIVersion,
		Info: &openapi3.Info{
			Title:       "Ideate API",
			Description: "Configuration-driven CRUD API",
			Version:     version,
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{
				ErrorSchema:   openapi3.NewSchemaRef("", errorSchema()),
				MessageSchema: openapi3.NewSchemaRef("", messageSchema()),
			},
		},
	}

	for _, spec := range specs {
		addDomain(doc, spec)
	}
	return doc
}

func errorSchema() *openapi3.Schema {
	item := openapi3.NewObjectSchema().
		WithProperty("field", openapi3.NewStringSchema()).
		WithProperty("message", openapi3.NewStringSchema())
	s := openapi3.NewObjectSchema().
		WithProperty("error", openapi3.NewStringSchema()).
		WithProperty("errors", openapi3.NewArraySchema().WithItems(item))
	s.Required = []string{"error"}
	return s
}

func messageSchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("id", openapi3.NewStringSchema())
	s.Required = []string{"message"}
	return s
}

// FieldSchema maps a field to its JSON schema.
func FieldSchema(f types.FieldSpec) *openapi3.Schema {
	var s *openapi3.Schema
	switch {
	case f.Type == types.FieldTypeDateTime:
		s = openapi3.NewDateTimeSchema()
	case f.Kind() == types.KindDate:
		s = openapi3.NewStringSchema().WithFormat("date")
	case f.Kind() == types.KindNumber:
		s = openapi3.NewFloat64Schema()
		s.Min = f.Min
		s.Max = f.Max
	case f.Kind() == types.KindBool:
		s = openapi3.NewBoolSchema()
	default:
		s = openapi3.NewStringSchema()
	}
	s.Title = f.Label
	s.Description = f.HelpText
	if !f.Default.IsNull() {
		s.Default = f.Default.Interface()
	}
	return s
}

func addDomain(doc *openapi3.T, spec *types.DomainSpec) {
	entityName := SchemaName(spec.Domain, "Entity")
	createName := SchemaName(spec.Domain, "Create")
	updateName := SchemaName(spec.Domain, "Update")

	entity := openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewStringSchema()).
		WithProperty("archived", openapi3.NewBoolSchema()).
		WithProperty("createdAt", openapi3.NewDateTimeSchema()).
		WithProperty("updatedAt", openapi3.NewDateTimeSchema())
	entity.Required = []string{"id", "archived", "createdAt", "updatedAt"}
	entity.Title = spec.Label
	entity.Description = spec.Description

	create := openapi3.NewObjectSchema()
	update := openapi3.NewObjectSchema().WithProperty("archived", openapi3.NewBoolSchema())
	for _, f := range spec.Fields {
		entity.WithProperty(f.Key, FieldSchema(f))
		create.WithProperty(f.Key, FieldSchema(f))
		update.WithProperty(f.Key, FieldSchema(f))
	}
	for _, f := range spec.RequiredFields() {
		create.Required = append(create.Required, f.Key)
	}

	doc.Components.Schemas[entityName] = openapi3.NewSchemaRef("", entity)
	doc.Components.Schemas[createName] = openapi3.NewSchemaRef("", create)
	doc.Components.Schemas[updateName] = openapi3.NewSchemaRef("", update)

	tags := []string{spec.LabelPlural}
	base := "/" + spec.Domain
	idParam := &openapi3.ParameterRef{Value: openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema())}

	list := operation(spec, "list", "List "+spec.LabelPlural, tags,
		withStatus(http.StatusOK, "The matching entities", arrayOf(entityName)))
	list.Parameters = openapi3.Parameters{
		boolQuery("includeArchived", "Include archived entities"),
		boolQuery("archivedOnly", "Return only archived entities; overrides includeArchived"),
	}
	if spec.Features.Search {
		q := openapi3.NewQueryParameter("q").WithSchema(openapi3.NewStringSchema())
		q.Description = "Case-insensitive substring match over visible text fields"
		list.Parameters = append(list.Parameters, &openapi3.ParameterRef{Value: q})
	}
	collection := &openapi3.PathItem{Get: list}
	if spec.Features.Create {
		collection.Post = operation(spec, "create", "Create a "+spec.Label, tags,
			withRef(http.StatusCreated, "The created entity", entityName),
			withRef(http.StatusBadRequest, "Validation failed", ErrorSchema))
		collection.Post.RequestBody = requestBody(createName)
	}
	doc.Paths.Set(base, collection)

	item := &openapi3.PathItem{
		Parameters: openapi3.Parameters{idParam},
		Get: operation(spec, "get", "Get a "+spec.Label, tags,
			withRef(http.StatusOK, "The entity", entityName),
			withRef(http.StatusNotFound, spec.Label+" not found", ErrorSchema)),
	}
	if spec.Features.Update {
		item.Put = operation(spec, "update", "Update a "+spec.Label, tags,
			withRef(http.StatusOK, "The updated entity", entityName),
			withRef(http.StatusBadRequest, "Validation failed", ErrorSchema),
			withRef(http.StatusNotFound, spec.Label+" not found", ErrorSchema),
			withRef(http.StatusConflict, "The entity changed since the supplied version", ErrorSchema))
		item.Put.RequestBody = requestBody(updateName)
	}
	if spec.Features.Delete {
		item.Delete = operation(spec, "delete", "Delete a "+spec.Label, tags,
			withRef(http.StatusOK, spec.Label+" deleted", MessageSchema),
			withRef(http.StatusNotFound, spec.Label+" not found", ErrorSchema))
	}
	doc.Paths.Set(base+"/{id}", item)

	if spec.Features.Archive {
		for _, action := range []string{"archive", "restore"} {
			doc.Paths.Set(base+"/{id}/"+action, &openapi3.PathItem{
				Parameters: openapi3.Parameters{idParam},
				Post: operation(spec, action, fmt.Sprintf("%s a %s", titleCase(action), spec.Label), tags,
					withRef(http.StatusOK, spec.Label+" "+action+"d", MessageSchema),
					withRef(http.StatusNotFound, spec.Label+" not found", ErrorSchema)),
			})
		}
	}

	doc.Paths.Set(base+"/config", &openapi3.PathItem{
		Get: operation(spec, "config", spec.Label+" configuration", tags,
			withStatus(http.StatusOK, "The domain configuration", openapi3.NewObjectSchema())),
	})
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

func arrayOf(name string) *openapi3.Schema {
	s := openapi3.NewArraySchema()
	s.Items = ref(name)
	return s
}

func withStatus(code int, desc string, schema *openapi3.Schema) openapi3.NewResponsesOption {
	resp := openapi3.NewResponse().WithDescription(desc).WithJSONSchema(schema)
	return openapi3.WithStatus(code, &openapi3.ResponseRef{Value: resp})
}

func withRef(code int, desc, schemaName string) openapi3.NewResponsesOption {
	resp := openapi3.NewResponse().WithDescription(desc).WithJSONSchemaRef(ref(schemaName))
	return openapi3.WithStatus(code, &openapi3.ResponseRef{Value: resp})
}

func operation(spec *types.DomainSpec, verb, summary string, tags []string, responses ...openapi3.NewResponsesOption) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = verb + "_" + spec.Domain
	op.Summary = summary
	op.Tags = tags
	op.Responses = openapi3.NewResponses(responses...)
	return op
}

func requestBody(schemaName string) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(ref(schemaName)),
	}
}

func boolQuery(name, desc string) *openapi3.ParameterRef {
	p := openapi3.NewQueryParameter(name).WithSchema(openapi3.NewBoolSchema())
	p.Description = desc
	return &openapi3.ParameterRef{Value: p}
}
