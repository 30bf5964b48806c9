// Copyright 2025 Poiesic Systems
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


package ai

import "fmt"

const jobResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "company_name": {"type": "string"},
    "company_domain": {"type": "string"},
    "location": {"type": "string"},
    "description": {"type": "string"},
    "url": {"type": "string"},
    "qualifications": {"type": "array", "items": {"type": "string"}},
    "responsibilities": {"type": "array", "items": {"type": "string"}},
    "salary_min": {"type": "number"},
    "salary_max": {"type": "number"},
    "salary_currency": {"type": "string"}
  },
  "required": ["title"],
  "additionalProperties": false
}`

const resumeResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "email": {"type": "string"},
    "phone": {"type": "string"},
    "location": {"type": "string"},
    "summary": {"type": "string"},
    "skills": {"type": "array", "items": {"type": "string"}},
    "experience": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "company": {"type": "string"},
          "start_date": {"type": "string"},
          "end_date": {"type": "string"},
          "highlights": {"type": "array", "items": {"type": "string"}}
        },
        "additionalProperties": false
      }
    },
    "education": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "institution": {"type": "string"},
          "degree": {"type": "string"},
          "field": {"type": "string"},
          "graduation_year": {"type": "string"}
        },
        "additionalProperties": false
      }
    }
  },
  "required": ["name"],
  "additionalProperties": false
}`

const promptTemplate = `Extract %s from the given text and return it as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
%s
- Omit any field the text does not state. Never invent values and never output null.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.
- If the text is not %s at all, return {"error": {"code": "invalid_input", "message": "<why>"}} instead.`

const jobRules = `- "title" is the job title exactly as advertised, without the company name or location.
- "company_domain" is the employer's bare web domain (example.com) only when the text shows it.
- "qualifications" and "responsibilities" keep the order of the posting, one short sentence each.
- Salary numbers are yearly amounts without separators; "salary_currency" is an ISO 4217 code.`

const resumeRules = `- "name" is the candidate's full name.
- "experience" lists positions newest first; dates keep the text's own format.
- "skills" are short noun phrases, without duplicates.`

// SystemPrompt returns the instructions sent ahead of the text for schema.
func SystemPrompt(schema Schema) (string, error) {
	switch schema {
	case SchemaJob:
		return fmt.Sprintf(promptTemplate, "the job posting", jobResponseSchema, jobRules, "a job posting"), nil
	case SchemaResume:
		return fmt.Sprintf(promptTemplate, "the résumé", resumeResponseSchema, resumeRules, "a résumé"), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSchema, schema)
}
