// ABOUTME: Parses the router model's fenced response/json replies
// ABOUTME: Validates workflow calls before the chatbot dispatches them
package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Workflow function names the router may call
const (
	FuncSearch    = "search"
	FuncGetAnswer = "get_answer"
)

// FunctionCall is one workflow invocation requested by the router
type FunctionCall struct {
	Function string          `json:"function"`
	Args     json.RawMessage `json:"args"`
}

// SearchArgs are the arguments of a case-search call
type SearchArgs struct {
	UserQuery string `json:"user_query"`
}

// AnswerArgs are the arguments of a general-QA call
type AnswerArgs struct {
	Question string `json:"question"`
}

var (
	responseBlockRe = regexp.MustCompile("(?s)```response(.*?)```")
	jsonBlockRe     = regexp.MustCompile("(?s)```json(.*?)```")
)

// ParseRouterReply splits a router reply into a direct response or a function
// call. Exactly one of the two is returned; a reply with neither is an error
// so the caller can retry.
func ParseRouterReply(reply string) (string, *FunctionCall, error) {
	responses := responseBlockRe.FindAllStringSubmatch(reply, -1)
	jsonBlocks := jsonBlockRe.FindAllStringSubmatch(reply, -1)

	if len(responses) == 0 && len(jsonBlocks) == 0 {
		return "", nil, fmt.Errorf("reply has neither a response nor a json block")
	}

	if len(jsonBlocks) > 0 {
		raw := strings.TrimSpace(jsonBlocks[len(jsonBlocks)-1][1])
		var call FunctionCall
		if err := json.Unmarshal([]byte(raw), &call); err != nil {
			return "", nil, fmt.Errorf("decoding function call: %w", err)
		}
		if err := validateCall(&call); err != nil {
			return "", nil, err
		}
		if len(responses) == 0 {
			return "", &call, nil
		}
	}

	return strings.TrimSpace(responses[len(responses)-1][1]), nil, nil
}

func validateCall(call *FunctionCall) error {
	switch call.Function {
	case FuncSearch:
		var args SearchArgs
		if err := json.Unmarshal(call.Args, &args); err != nil || args.UserQuery == "" {
			return fmt.Errorf("search call missing user_query")
		}
	case FuncGetAnswer:
		var args AnswerArgs
		if err := json.Unmarshal(call.Args, &args); err != nil || args.Question == "" {
			return fmt.Errorf("get_answer call missing question")
		}
	default:
		return fmt.Errorf("unknown function %q", call.Function)
	}
	return nil
}

// lastBlock extracts the last fenced block matched by re, or ""
func lastBlock(re *regexp.Regexp, text string) string {
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.TrimSpace(matches[len(matches)-1][1])
}
