package agent

import (
	"encoding/json"
	"fmt"

	"github.com/twitchax/triage-bot/core"
	"github.com/twitchax/triage-bot/logging"
	"github.com/twitchax/triage-bot/model"
	"github.com/twitchax/triage-bot/tool"
)

// ToolChecker reports whether a named tool is available for invocation.
// *tool.Registry satisfies it; a nil checker means no registered tools.
type ToolChecker interface {
	Has(name string) bool
}

// assistantReply is the structured JSON the assistant is required to emit
// for its final answer.
type assistantReply struct {
	Type           string  `json:"type"`
	ThreadTS       *string `json:"thread_ts"`
	Classification *string `json:"classification"`
	Message        *string `json:"message"`
}

const (
	replyTypeNoAction      = "NoAction"
	replyTypeReplyToThread = "ReplyToThread"
)

// ParseResponse turns a model response into the actions it asks for.
//
// Text items must be the structured reply JSON; text that does not decode is
// logged and skipped. Function calls map to the built-in tools or, when the
// checker knows the name, to an InvokeTool action. A refusal or a call to an
// unknown function fails the whole parse.
func ParseResponse(resp *model.Response, tools ToolChecker, logger logging.Logger) ([]core.Action, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	var actions []core.Action

	for _, item := range resp.Items {
		switch it := item.(type) {
		case model.TextItem:
			action, ok := parseReply(it.Text, logger)
			if ok {
				actions = append(actions, action)
			}

		case model.RefusalItem:
			return nil, fmt.Errorf("model refused to respond: %s", it.Reason)

		case model.FunctionCallItem:
			action, err := parseFunctionCall(it, tools)
			if err != nil {
				return nil, err
			}
			actions = append(actions, action)

		case model.WebSearchItem:
			logger.Debug("parser.web_search_call", "id", it.ID)

		default:
			return nil, fmt.Errorf("unexpected output item %T", item)
		}
	}

	return actions, nil
}

func parseReply(text string, logger logging.Logger) (core.Action, bool) {
	var reply assistantReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		logger.Warn("parser.unstructured_text", "text", text)
		return nil, false
	}

	switch reply.Type {
	case replyTypeNoAction:
		return core.NoAction{}, true

	case replyTypeReplyToThread:
		if reply.Message == nil || *reply.Message == "" {
			logger.Warn("parser.reply_missing_message")
			return nil, false
		}
		var threadID string
		if reply.ThreadTS != nil {
			threadID = *reply.ThreadTS
		}
		var classification core.Classification
		if reply.Classification != nil {
			classification = core.Classification(*reply.Classification)
		}
		return core.Reply{
			ThreadID:       threadID,
			Classification: classification,
			Message:        *reply.Message,
		}, true

	default:
		logger.Warn("parser.unknown_reply_type", "type", reply.Type)
		return nil, false
	}
}

func parseFunctionCall(call model.FunctionCallItem, tools ToolChecker) (core.Action, error) {
	switch call.Name {
	case tool.SetChannelDirectiveName:
		notes, err := tool.DecodeMessageArg(call.Name, call.Arguments)
		if err != nil {
			return nil, err
		}
		return core.SetDirective{CallID: call.CallID, Notes: notes}, nil

	case tool.UpdateChannelContextName:
		notes, err := tool.DecodeMessageArg(call.Name, call.Arguments)
		if err != nil {
			return nil, err
		}
		return core.AppendContext{CallID: call.CallID, Notes: notes}, nil

	default:
		if tools != nil && tools.Has(call.Name) {
			return core.InvokeTool{
				CallID:    call.CallID,
				ToolName:  call.Name,
				Arguments: call.Arguments,
			}, nil
		}
		return nil, fmt.Errorf("model called unknown tool %q", call.Name)
	}
}
