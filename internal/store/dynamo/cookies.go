// Package dynamo stores browser session cookies in a DynamoDB table keyed by
// session_key.
package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// API is the slice of the DynamoDB client the cookie store needs.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// CookieStore persists serialized cookies, one item per session key.
type CookieStore struct {
	client API
	table  string
	now    func() time.Time
}

func New(client API, table string) *CookieStore {
	return &CookieStore{client: client, table: table, now: time.Now}
}

// NewFromRegion loads the default AWS credential chain for region.
func NewFromRegion(ctx context.Context, region, table string) (*CookieStore, error) {
	if table == "" {
		return nil, fmt.Errorf("dynamodb table name is empty")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return New(dynamodb.NewFromConfig(cfg), table), nil
}

// GetCookies returns the cookies saved under key; a missing item is not an error.
func (s *CookieStore) GetCookies(ctx context.Context, key string) (string, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"session_key": &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to get session %s from DynamoDB: %w", key, err)
	}
	if out.Item == nil {
		return "", false, nil
	}
	v, ok := out.Item["cookies"].(*types.AttributeValueMemberS)
	if !ok {
		return "", false, fmt.Errorf("session %s has no cookies attribute", key)
	}
	return v.Value, true, nil
}

// SetCookies overwrites the item for key.
func (s *CookieStore) SetCookies(ctx context.Context, key, cookies string) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"session_key": &types.AttributeValueMemberS{Value: key},
			"cookies":     &types.AttributeValueMemberS{Value: cookies},
			"updated_at":  &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().UTC().UnixMilli(), 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put session %s to DynamoDB: %w", key, err)
	}
	return nil
}
