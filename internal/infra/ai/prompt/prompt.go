// Package prompt owns the fixed system instruction, the response schema and the user prompt
// template sent with every chat log analysis.
package prompt

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed defaults/system_instruction.txt
var defaultSystemInstruction string

//go:embed defaults/response_schema.json
var defaultResponseSchema []byte

// Set is the immutable instruction and schema pair for a deployment.
type Set struct {
	SystemInstruction string
	ResponseSchema    json.RawMessage
}

// Default returns the embedded instruction and schema.
func Default() Set {
	return Set{
		SystemInstruction: strings.TrimSpace(defaultSystemInstruction),
		ResponseSchema:    json.RawMessage(defaultResponseSchema),
	}
}

// Load reads the instruction and schema from files, falling back to the embedded defaults
// for any path left empty.
func Load(instructionFile, schemaFile string) (Set, error) {
	set := Default()

	if instructionFile != "" {
		b, err := os.ReadFile(instructionFile)
		if err != nil {
			return Set{}, fmt.Errorf("read system instruction: %w", err)
		}
		text := strings.TrimSpace(string(b))
		if text == "" {
			return Set{}, fmt.Errorf("system instruction %s is empty", instructionFile)
		}
		set.SystemInstruction = text
	}

	if schemaFile != "" {
		b, err := os.ReadFile(schemaFile)
		if err != nil {
			return Set{}, fmt.Errorf("read response schema: %w", err)
		}
		set.ResponseSchema = json.RawMessage(b)
	}

	if err := validateSchema(set.ResponseSchema); err != nil {
		return Set{}, err
	}
	return set, nil
}

func validateSchema(raw json.RawMessage) error {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("response schema is not a JSON object: %w", err)
	}
	if _, ok := doc["type"].(string); !ok {
		return fmt.Errorf("response schema must declare a top-level type")
	}
	return nil
}

// UserPrompt embeds the instructor names and the transcript into the fixed template.
// No escaping is applied.
func UserPrompt(chatLog, instructorNames string) string {
	return fmt.Sprintf(`
  Here is the chat log. Please analyze it.
  The instructor(s)/host(s) for this session are: %s. Please ignore their messages as per the instructions.

  --- CHAT LOG START ---
  %s
  --- CHAT LOG END ---
  `, instructorNames, chatLog)
}
