package brain

import (
	"context"
	"fmt"
	"strings"
)

// MockResponder is a deterministic local responder for dev and tests.
type MockResponder struct{}

func NewMockResponder() *MockResponder { return &MockResponder{} }

func (m *MockResponder) StreamReply(_ context.Context, req ReplyRequest, onDelta DeltaHandler) (ReplyResponse, error) {
	input := strings.TrimSpace(req.InputText)
	if input == "" {
		return ReplyResponse{}, nil
	}
	text := fmt.Sprintf("I heard you say: %s", input)
	if onDelta != nil {
		for _, word := range strings.Fields(text) {
			if err := onDelta(word + " "); err != nil {
				return ReplyResponse{}, err
			}
		}
	}
	return ReplyResponse{Text: text}, nil
}
