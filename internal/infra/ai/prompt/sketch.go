package prompt

import "github.com/sashabaranov/go-openai/jsonschema"

// SchemaName is the name the output schema is registered under
const SchemaName = "sketch_analysis"

// GetSystemPrompt provides the fixed instruction sent with every sketch.
func GetSystemPrompt() string {
	return `You are an expert Senior Software Architect and System Designer.
Your goal is to analyze hand-drawn or digital system architecture sketches and convert them into structured data.
You must accurately identify nodes (databases, services, clients), edges (data flow, requests), and labels.
You must also recommend a modern, robust, and scalable technology stack based on the inferred components.

IMPORTANT: When generating Mermaid code:
1. Use top-down orientation (graph TD) or left-right (graph LR) as appropriate.
2. ALWAYS enclose node labels in double quotes to handle special characters and parentheses safely (e.g., id["Label (Details)"]).
3. Do not use parentheses inside labels without quotes.

Respond with one JSON object that follows the provided schema. No markdown, no code fences.`
}

// GetUserPrompt restates the quoting rule next to the image.
func GetUserPrompt() string {
	return "Analyze this system design sketch. Generate a Mermaid.js diagram code that perfectly represents the flow and structure. \n\n" +
		"CRITICAL: Ensure all Mermaid node labels are wrapped in double quotes (e.g. id[\"Label Text\"]) to prevent syntax errors with parentheses. " +
		"Also suggest a high-quality tech stack."
}

// Schema is the strict output schema requested from the service.
func Schema() *jsonschema.Definition {
	item := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"component": {
				Type:        jsonschema.String,
				Description: "The logical component (e.g., 'Load Balancer', 'Primary DB')",
			},
			"technology": {
				Type:        jsonschema.String,
				Description: "Recommended technology (e.g., 'Nginx', 'PostgreSQL')",
			},
			"reasoning": {
				Type:        jsonschema.String,
				Description: "Why this technology fits this architecture.",
			},
		},
		Required:             []string{"component", "technology", "reasoning"},
		AdditionalProperties: false,
	}

	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"mermaidCode": {
				Type: jsonschema.String,
				Description: "Valid Mermaid.js graph definition. IMPORTANT: You MUST use double quotes for ALL node labels " +
					"to ensure parentheses and special characters are parsed correctly (e.g., A[\"User (Mobile)\"] --> B[\"API\"]).",
			},
			"summary": {
				Type:        jsonschema.String,
				Description: "A concise executive summary of the architecture shown in the sketch.",
			},
			"techStack": {
				Type:  jsonschema.Array,
				Items: &item,
			},
		},
		Required:             []string{"mermaidCode", "summary", "techStack"},
		AdditionalProperties: false,
	}
}
