// Package bedrockagent invokes an Amazon Bedrock agent and drains its
// response stream.
package bedrockagent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"healthcare-assistant/internal/usecase"
)

// eventStream is the part of *bedrockagentruntime.InvokeAgentEventStream the
// client reads.
type eventStream interface {
	Events() <-chan types.ResponseStream
	Close() error
	Err() error
}

// invoker opens one agent turn. sdkInvoker adapts the SDK client; tests supply
// their own streams.
type invoker interface {
	invoke(ctx context.Context, in *bedrockagentruntime.InvokeAgentInput) (eventStream, error)
}

type agentAPI interface {
	InvokeAgent(ctx context.Context, in *bedrockagentruntime.InvokeAgentInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.InvokeAgentOutput, error)
}

type sdkInvoker struct {
	api agentAPI
}

func (s sdkInvoker) invoke(ctx context.Context, in *bedrockagentruntime.InvokeAgentInput) (eventStream, error) {
	out, err := s.api.InvokeAgent(ctx, in)
	if err != nil {
		return nil, err
	}
	if out == nil || out.GetStream() == nil {
		return nil, errors.New("no response stream")
	}
	return out.GetStream(), nil
}

// Client implements usecase.AgentInvoker.
type Client struct {
	inv         invoker
	enableTrace bool
}

type Option func(*Client)

// WithTrace asks the agent to emit reasoning trace parts.
func WithTrace(enabled bool) Option {
	return func(c *Client) { c.enableTrace = enabled }
}

func New(api agentAPI, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("bedrockagent: api must not be nil")
	}
	return newClient(sdkInvoker{api: api}, opts...), nil
}

func newClient(inv invoker, opts ...Option) *Client {
	c := &Client{inv: inv, enableTrace: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) InvokeAgent(ctx context.Context, req usecase.AgentRequest) (usecase.AgentReply, error) {
	if req.AgentID == "" || req.AgentAliasID == "" {
		return usecase.AgentReply{}, errors.New("bedrockagent: agent id and alias id are required")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return usecase.AgentReply{}, errors.New("bedrockagent: session id is required")
	}

	stream, err := c.inv.invoke(ctx, &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(req.AgentID),
		AgentAliasId: aws.String(req.AgentAliasID),
		SessionId:    aws.String(req.SessionID),
		InputText:    aws.String(req.Text),
		EnableTrace:  aws.Bool(c.enableTrace),
		SessionState: &types.SessionState{SessionAttributes: req.Attributes},
	})
	if err != nil {
		return usecase.AgentReply{}, fmt.Errorf("bedrockagent: invoke agent: %w", err)
	}
	defer func() { _ = stream.Close() }()

	reply, err := drain(ctx, stream)
	if err != nil {
		return usecase.AgentReply{}, err
	}
	if strings.TrimSpace(reply.Text) == "" {
		return usecase.AgentReply{}, errors.New("bedrockagent: stream produced no text")
	}
	return reply, nil
}

// drain consumes every event in arrival order. A partial read is an error.
func drain(ctx context.Context, stream eventStream) (usecase.AgentReply, error) {
	var (
		text      strings.Builder
		citations []string
		traces    []string
		seen      = map[string]struct{}{}
	)
	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			return usecase.AgentReply{}, fmt.Errorf("bedrockagent: read stream: %w", ctx.Err())
		case ev, ok := <-events:
			if !ok {
				if err := stream.Err(); err != nil {
					return usecase.AgentReply{}, fmt.Errorf("bedrockagent: read stream: %w", err)
				}
				return usecase.AgentReply{
					Text:      text.String(),
					Citations: citations,
					Traces:    traces,
				}, nil
			}
			switch v := ev.(type) {
			case *types.ResponseStreamMemberChunk:
				text.Write(v.Value.Bytes)
				for _, uri := range citationURIs(v.Value.Attribution) {
					if _, dup := seen[uri]; dup {
						continue
					}
					seen[uri] = struct{}{}
					citations = append(citations, uri)
				}
			case *types.ResponseStreamMemberTrace:
				traces = append(traces, traceKind(v.Value.Trace))
			}
		}
	}
}

func citationURIs(a *types.Attribution) []string {
	if a == nil {
		return nil
	}
	var out []string
	for _, c := range a.Citations {
		for _, ref := range c.RetrievedReferences {
			if uri := locationURI(ref.Location); uri != "" {
				out = append(out, uri)
			}
		}
	}
	return out
}

func locationURI(loc *types.RetrievalResultLocation) string {
	if loc == nil {
		return ""
	}
	if loc.S3Location != nil && loc.S3Location.Uri != nil {
		return *loc.S3Location.Uri
	}
	if loc.WebLocation != nil && loc.WebLocation.Url != nil {
		return *loc.WebLocation.Url
	}
	return ""
}

func traceKind(t types.Trace) string {
	switch t.(type) {
	case *types.TraceMemberPreProcessingTrace:
		return "preProcessing"
	case *types.TraceMemberOrchestrationTrace:
		return "orchestration"
	case *types.TraceMemberPostProcessingTrace:
		return "postProcessing"
	case *types.TraceMemberGuardrailTrace:
		return "guardrail"
	case *types.TraceMemberFailureTrace:
		return "failure"
	case nil:
		return "empty"
	default:
		return "other"
	}
}
