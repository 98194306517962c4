package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"healthcare-assistant/internal/domain"
)

const (
	DefaultUserIndex = "userId-timestamp-index"
	DefaultTTL       = 30 * 24 * time.Hour

	// timestampLayout is fixed width so the GSI range key sorts chronologically.
	timestampLayout = "2006-01-02T15:04:05.000000000Z"

	attrSessionID = "sessionId"
	attrMessageID = "messageId"
	attrUserID    = "userId"
	attrRole      = "role"
	attrText      = "text"
	attrTimestamp = "timestamp"
	attrTTL       = "ttl"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Client stores conversation turns in a single DynamoDB table keyed by
// (sessionId, messageId) with a userId/timestamp secondary index.
type Client struct {
	api       dynamodbAPI
	tableName string
	userIndex string
	ttl       time.Duration
	now       func() time.Time
}

type Option func(*Client)

// WithUserIndex overrides the name of the userId/timestamp GSI.
func WithUserIndex(name string) Option {
	return func(c *Client) {
		if name = strings.TrimSpace(name); name != "" {
			c.userIndex = name
		}
	}
}

// WithTTL sets how long a turn is retained before DynamoDB expires it.
func WithTTL(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.ttl = d
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	c := &Client{
		api:       api,
		tableName: tableName,
		userIndex: DefaultUserIndex,
		ttl:       DefaultTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AppendTurn writes a new turn. Existing (sessionId, messageId) pairs are
// never overwritten.
func (c *Client) AppendTurn(ctx context.Context, turn domain.ConversationTurn) error {
	if turn.SessionID == "" || turn.MessageID == "" {
		return errors.New("repository: AppendTurn: session id and message id are required")
	}
	if turn.Timestamp.IsZero() {
		return errors.New("repository: AppendTurn: timestamp is required")
	}
	if turn.TTL == 0 {
		turn.TTL = c.now().Add(c.ttl).Unix()
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                turnItem(turn),
		ConditionExpression: aws.String("attribute_not_exists(sessionId) AND attribute_not_exists(messageId)"),
	})
	if err != nil {
		return fmt.Errorf("repository: AppendTurn: %w", err)
	}
	return nil
}

// GetConversation returns every turn of a session in chronological order,
// following pagination until the query is exhausted.
func (c *Client) GetConversation(ctx context.Context, sessionID string) ([]domain.ConversationTurn, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("sessionId = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: sessionID},
		},
		ScanIndexForward: aws.Bool(true),
	}

	turns := make([]domain.ConversationTurn, 0)
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: GetConversation query: %w", err)
		}
		if out == nil {
			break
		}
		for _, item := range out.Items {
			turn, err := itemToTurn(item)
			if err != nil {
				return nil, fmt.Errorf("repository: GetConversation unmarshal: %w", err)
			}
			turns = append(turns, turn)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	// The sort key is an opaque id; order by timestamp.
	sortChronologically(turns)
	return turns, nil
}

// sortChronologically orders turns by timestamp, then by message id.
func sortChronologically(turns []domain.ConversationTurn) {
	sort.SliceStable(turns, func(i, j int) bool {
		if !turns[i].Timestamp.Equal(turns[j].Timestamp) {
			return turns[i].Timestamp.Before(turns[j].Timestamp)
		}
		return turns[i].MessageID < turns[j].MessageID
	})
}

// RecentSessions walks a user's turns newest first and folds them into one
// summary per session until limit distinct sessions are found.
func (c *Client) RecentSessions(ctx context.Context, userID string, limit int) ([]domain.SessionSummary, error) {
	sessions := make([]domain.SessionSummary, 0)
	if limit <= 0 {
		return sessions, nil
	}

	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		IndexName:              aws.String(c.userIndex),
		KeyConditionExpression: aws.String("userId = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	}

	seen := make(map[string]struct{})
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: RecentSessions query: %w", err)
		}
		if out == nil {
			break
		}
		for _, item := range out.Items {
			turn, err := itemToTurn(item)
			if err != nil {
				return nil, fmt.Errorf("repository: RecentSessions unmarshal: %w", err)
			}
			if _, ok := seen[turn.SessionID]; ok {
				continue
			}
			seen[turn.SessionID] = struct{}{}
			sessions = append(sessions, summaryOf(turn))
			if len(sessions) == limit {
				return sessions, nil
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return sessions, nil
}

func summaryOf(turn domain.ConversationTurn) domain.SessionSummary {
	return domain.SessionSummary{
		SessionID:    turn.SessionID,
		UserID:       turn.UserID,
		LastActivity: turn.Timestamp,
		LastMessage:  turn.Text,
	}
}

func formatTimestamp(ts time.Time) string {
	return ts.UTC().Format(timestampLayout)
}

func turnItem(turn domain.ConversationTurn) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		attrSessionID: &types.AttributeValueMemberS{Value: turn.SessionID},
		attrMessageID: &types.AttributeValueMemberS{Value: turn.MessageID},
		attrRole:      &types.AttributeValueMemberS{Value: string(turn.Role)},
		attrText:      &types.AttributeValueMemberS{Value: turn.Text},
		attrTimestamp: &types.AttributeValueMemberS{Value: formatTimestamp(turn.Timestamp)},
		attrTTL:       &types.AttributeValueMemberN{Value: strconv.FormatInt(turn.TTL, 10)},
	}
	// GSI key attributes must be absent rather than empty.
	if turn.UserID != "" {
		item[attrUserID] = &types.AttributeValueMemberS{Value: turn.UserID}
	}
	return item
}

// itemToTurn converts a DynamoDB attribute map to a ConversationTurn.
func itemToTurn(item map[string]types.AttributeValue) (domain.ConversationTurn, error) {
	sessionID, err := strAttr(item, attrSessionID)
	if err != nil {
		return domain.ConversationTurn{}, err
	}
	messageID, err := strAttr(item, attrMessageID)
	if err != nil {
		return domain.ConversationTurn{}, err
	}
	text, err := strAttr(item, attrText)
	if err != nil {
		return domain.ConversationTurn{}, err
	}
	rawTS, err := strAttr(item, attrTimestamp)
	if err != nil {
		return domain.ConversationTurn{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, rawTS)
	if err != nil {
		return domain.ConversationTurn{}, fmt.Errorf("repository: parse attribute %q: %w", attrTimestamp, err)
	}
	role, _ := strAttr(item, attrRole)     // allow empty
	userID, _ := strAttr(item, attrUserID) // absent for anonymous turns
	ttl, _ := int64Attr(item, attrTTL)

	return domain.ConversationTurn{
		SessionID: sessionID,
		MessageID: messageID,
		UserID:    userID,
		Role:      domain.Role(role),
		Text:      text,
		Timestamp: ts.UTC(),
		TTL:       ttl,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
