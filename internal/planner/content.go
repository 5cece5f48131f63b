package planner

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/nadzzz/cozmoagent/internal/catalog"
	"github.com/nadzzz/cozmoagent/internal/message"
)

// ErrEmptyResponse is returned when a backend answers with nothing.
var ErrEmptyResponse = errors.New("empty planner response")

// wrapperKeys are object keys some models nest their step array under.
var wrapperKeys = []string{"steps", "plan", "commands"}

// ReplyFromContent turns the text content of an LLM answer into a reply.
// JSON content is used as the reply (code fences and a {"steps": [...]}
// wrapper are removed). Plain prose is treated as something to say out loud,
// which is how models phrase clarification questions when they skip the tool.
func ReplyFromContent(content string) (message.Reply, error) {
	content = stripFences(strings.TrimSpace(content))
	if content == "" {
		return nil, ErrEmptyResponse
	}

	if !json.Valid([]byte(content)) {
		cmd, err := catalog.Construct(catalog.Speak, map[string]any{"text": content})
		if err != nil {
			return nil, err
		}
		return message.NewReply(cmd)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &obj); err == nil {
		if _, isRecord := obj["decision"]; !isRecord {
			for _, key := range wrapperKeys {
				if inner, ok := obj[key]; ok {
					return message.Reply(inner), nil
				}
			}
		}
	}
	return message.Reply(content), nil
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
