package project

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const projectSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": { "type": "string", "minLength": 1 },
    "demand": { "$ref": "#/definitions/systemConfig" },
    "defect": { "$ref": "#/definitions/systemConfig" },
    "effort": { "$ref": "#/definitions/systemConfig" },
    "startDate": { "type": "string" },
    "endDate": { "type": "string" }
  },
  "definitions": {
    "systemConfig": {
      "type": ["object", "null"],
      "properties": {
        "source": { "type": "string", "minLength": 1 },
        "url": { "type": "string", "minLength": 1 },
        "project": { "type": "string" },
        "authPolicy": { "type": "string" },
        "userData": { "type": "string" }
      },
      "dependencies": {
        "source": ["url", "project"]
      }
    }
  }
}`

var projectSchemaLoader = gojsonschema.NewStringLoader(projectSchemaJSON)

// Validate checks a project document against the configuration schema. A
// project that fails here is a configuration error: the load surface refuses
// to create events for it rather than failing mid-pipeline.
func (p *Project) Validate() error {
	result, err := gojsonschema.Validate(projectSchemaLoader, gojsonschema.NewGoLoader(p))
	if err != nil {
		return fmt.Errorf("validate project %s: %w", p.Name, err)
	}
	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, issue := range result.Errors() {
		issues = append(issues, issue.String())
	}
	return fmt.Errorf("project %s configuration invalid: %s", p.Name, strings.Join(issues, "; "))
}
