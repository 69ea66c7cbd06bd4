package dynamostore

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/rivet/adapter"
)

// Attributes the backend manages itself; documents never contain them.
const (
	attrPK      = "pk"
	attrSK      = "sk"
	attrVersion = "version"
	attrTTL     = "ttl"
)

// partitionKey scopes every bucket of one bucket type to its own partition
// in the single record table.
func partitionKey(bucketType, bucket string) string {
	return bucketType + "/" + bucket
}

// marshalDoc converts a document into item attributes: scalar strings to S,
// nested maps to M, recursively.
func marshalDoc(doc adapter.Document) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return nil, fmt.Errorf("rivet: marshal document: %w", err)
	}
	for _, name := range []string{attrPK, attrSK, attrVersion, attrTTL} {
		if _, ok := item[name]; ok {
			return nil, fmt.Errorf("rivet: document field %q collides with a managed attribute", name)
		}
	}
	return item, nil
}

// unmarshalDoc converts item attributes back into a document, dropping the
// managed attributes.
func unmarshalDoc(item map[string]types.AttributeValue) (adapter.Document, error) {
	fields := make(map[string]types.AttributeValue, len(item))
	for name, av := range item {
		switch name {
		case attrPK, attrSK, attrVersion, attrTTL:
			continue
		}
		fields[name] = av
	}

	var doc adapter.Document
	if err := attributevalue.UnmarshalMap(fields, &doc); err != nil {
		return nil, fmt.Errorf("rivet: unmarshal document: %w", err)
	}
	if doc == nil {
		doc = adapter.Document{}
	}
	return doc, nil
}

// itemVersion reads the optimistic-lock counter the causal context is
// derived from.
func itemVersion(item map[string]types.AttributeValue) (int64, bool) {
	av, ok := item[attrVersion].(*types.AttributeValueMemberN)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(av.Value, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// contextOf renders an item's version as the opaque causal context handed
// to callers.
func contextOf(item map[string]types.AttributeValue) adapter.CausalContext {
	v, ok := itemVersion(item)
	if !ok {
		return ""
	}
	return adapter.CausalContext(strconv.FormatInt(v, 10))
}

// parseContext turns a caller-supplied causal context back into the
// expected version.
func parseContext(cc adapter.CausalContext) (int64, error) {
	v, err := strconv.ParseInt(string(cc), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadContext, cc)
	}
	return v, nil
}

// isDeleted reports whether an item has an expired TTL, which is how this
// backend realizes deletes.
func isDeleted(item map[string]types.AttributeValue) bool {
	av, ok := item[attrTTL].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(av.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl <= time.Now().Unix()
}

// ttlFilterExpr excludes soft-deleted items from queries.
func ttlFilterExpr() string {
	return "attribute_not_exists(#ttl) OR #ttl > :now"
}

func nowAttr() types.AttributeValue {
	return &types.AttributeValueMemberN{
		Value: strconv.FormatInt(time.Now().Unix(), 10),
	}
}
