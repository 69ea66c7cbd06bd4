// Package dynamostore implements the adapter's store client on DynamoDB.
//
// All buckets of one repository live in a single table keyed by
// (bucket-type/bucket, id). The causal context handed to callers is the
// item's optimistic-lock version; updates are conditional on it and a
// mismatch surfaces as ErrStaleContext. Deletes are TTL soft deletes, and
// every read filters soft-deleted items out.
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/rivet/adapter"
)

// api is the slice of the DynamoDB client this backend uses.
type api interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Conn is one store connection. It satisfies adapter.Client and is used by
// one caller at a time; the pool provides that exclusivity.
type Conn struct {
	client api
	cfg    Config
}

var _ adapter.Client = (*Conn)(nil)

// New creates a Conn on an existing DynamoDB client.
func New(client *dynamodb.Client, cfg Config) *Conn {
	cfg.validate()
	return &Conn{
		client: client,
		cfg:    cfg,
	}
}

// Dial resolves AWS configuration from the environment and opens a Conn.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	cfg.validate()

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("rivet: load aws config: %w", err)
	}
	return &Conn{
		client: dynamodb.NewFromConfig(awsCfg),
		cfg:    cfg,
	}, nil
}

// Dialer adapts Dial to the pool's connection factory shape.
func Dialer(cfg Config) func(context.Context) (adapter.Client, error) {
	return func(ctx context.Context) (adapter.Client, error) {
		return Dial(ctx, cfg)
	}
}

func (c *Conn) key(bucketType, bucket, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: partitionKey(bucketType, bucket)},
		attrSK: &types.AttributeValueMemberS{Value: id},
	}
}

// Fetch returns a record's causal context and document, treating
// soft-deleted items as absent.
func (c *Conn) Fetch(ctx context.Context, bucketType, bucket, id string) (adapter.CausalContext, adapter.Document, error) {
	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.cfg.Table),
		Key:       c.key(bucketType, bucket, id),
	})
	if err != nil {
		return "", nil, err
	}
	if out.Item == nil || isDeleted(out.Item) {
		return "", nil, adapter.ErrNotFound
	}

	doc, err := unmarshalDoc(out.Item)
	if err != nil {
		return "", nil, err
	}
	return contextOf(out.Item), doc, nil
}

// Update writes a document. An empty causal context is a blind put creating
// version 1; otherwise the write is conditional on the stored version
// matching the context, and a mismatch returns ErrStaleContext.
func (c *Conn) Update(ctx context.Context, bucketType, bucket, id string, cc adapter.CausalContext, doc adapter.Document) error {
	if cc == "" {
		return c.put(ctx, bucketType, bucket, id, doc)
	}

	expected, err := parseContext(cc)
	if err != nil {
		return err
	}
	item, err := marshalDoc(doc)
	if err != nil {
		return err
	}

	// Build the SET expression from the document's fields.
	exprNames := map[string]string{
		"#version": attrVersion,
		"#ttl":     attrTTL,
	}
	exprValues := map[string]types.AttributeValue{
		":one":      &types.AttributeValueMemberN{Value: "1"},
		":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
	}
	setClauses := []string{"#version = #version + :one"}
	i := 0
	for name, av := range item {
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		exprNames[nameKey] = name
		exprValues[valueKey] = av
		setClauses = append(setClauses, nameKey+" = "+valueKey)
		i++
	}

	_, err = c.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.cfg.Table),
		Key:                       c.key(bucketType, bucket, id),
		UpdateExpression:          aws.String("SET " + joinClauses(setClauses)),
		ConditionExpression:       aws.String("#version = :expected AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrStaleContext
		}
		return err
	}
	return nil
}

func (c *Conn) put(ctx context.Context, bucketType, bucket, id string, doc adapter.Document) error {
	item, err := marshalDoc(doc)
	if err != nil {
		return err
	}
	item[attrPK] = &types.AttributeValueMemberS{Value: partitionKey(bucketType, bucket)}
	item[attrSK] = &types.AttributeValueMemberS{Value: id}
	item[attrVersion] = &types.AttributeValueMemberN{Value: "1"}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.cfg.Table),
		Item:      item,
	})
	return err
}

// Delete marks a record deleted by setting its TTL. Deleting an absent or
// already-deleted record succeeds.
func (c *Conn) Delete(ctx context.Context, bucketType, bucket, id string) error {
	_, err := c.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.cfg.Table),
		Key:                 c.key(bucketType, bucket, id),
		UpdateExpression:    aws.String("SET #ttl = :now, #version = #version + :one"),
		ConditionExpression: aws.String("attribute_exists(#pk) AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: map[string]string{
			"#pk":      attrPK,
			"#ttl":     attrTTL,
			"#version": attrVersion,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": nowAttr(),
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return err
}

// Search queries a bucket for documents whose field matches value,
// filtering out soft-deleted items and paginating through all results.
func (c *Conn) Search(ctx context.Context, index, bucket, field, value string) ([]adapter.Document, error) {
	if index == "" {
		index = c.cfg.Index
	}

	input := &dynamodb.QueryInput{
		TableName:              aws.String(c.cfg.Table),
		KeyConditionExpression: aws.String("#pk = :pk"),
		FilterExpression:       aws.String("#field = :value AND (" + ttlFilterExpr() + ")"),
		ExpressionAttributeNames: map[string]string{
			"#pk":    attrPK,
			"#field": field,
			"#ttl":   attrTTL,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":    &types.AttributeValueMemberS{Value: partitionKey(c.cfg.BucketType, bucket)},
			":value": &types.AttributeValueMemberS{Value: value},
			":now":   nowAttr(),
		},
	}
	if index != "" {
		input.IndexName = aws.String(index)
	}

	var docs []adapter.Document
	paginator := dynamodb.NewQueryPaginator(c.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			doc, err := unmarshalDoc(item)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// RunCommand executes an admin command. The only command this backend
// understands is "describe-table", which reports the record table status.
func (c *Conn) RunCommand(ctx context.Context, command string) (string, error) {
	switch command {
	case "describe-table":
		out, err := c.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(c.cfg.Table),
		})
		if err != nil {
			return "", err
		}
		return string(out.Table.TableStatus), nil
	default:
		return "", fmt.Errorf("rivet: unknown store command %q", command)
	}
}

// Close releases the connection. The underlying HTTP client is shared and
// needs no teardown.
func (c *Conn) Close() error { return nil }

func joinClauses(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	out := clauses[0]
	for _, cl := range clauses[1:] {
		out += ", " + cl
	}
	return out
}
