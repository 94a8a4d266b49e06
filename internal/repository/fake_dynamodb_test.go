package repository

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

// fakeDynamoDB understands just the expressions the repositories issue:
// SET/REMOVE update clauses, AND-joined equality and attribute_(not_)exists
// conditions, and GSI1 key conditions with an optional begins_with or
// equality on the sort key.
type fakeDynamoDB struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	err   error
}

func newFakeDynamoDB() *fakeDynamoDB {
	return &fakeDynamoDB{items: make(map[string]map[string]types.AttributeValue)}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func storageKey(key map[string]types.AttributeValue) string {
	return s(key[attrPK]) + "|" + s(key[attrSK])
}

func s(av types.AttributeValue) string {
	if v, ok := av.(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *fakeDynamoDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	item, ok := f.items[storageKey(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *fakeDynamoDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	key := storageKey(in.Item)
	existing := f.items[key]
	if in.ConditionExpression != nil && !evalCondition(aws.ToString(in.ConditionExpression), existing, nil, nil) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
	}
	f.items[key] = copyItem(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamoDB) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	key := storageKey(in.Key)
	existing := f.items[key]
	if in.ConditionExpression != nil && !evalCondition(aws.ToString(in.ConditionExpression), existing, in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
	}

	item := copyItem(existing)
	if item == nil {
		item = copyItem(in.Key)
	}

	expr := strings.TrimPrefix(aws.ToString(in.UpdateExpression), "SET ")
	setPart, removePart, _ := strings.Cut(expr, " REMOVE ")
	for _, assignment := range strings.Split(setPart, ", ") {
		lhs, rhs, ok := strings.Cut(assignment, " = ")
		if !ok {
			panic(fmt.Sprintf("fake dynamodb: unsupported assignment %q", assignment))
		}
		item[resolveName(lhs, in.ExpressionAttributeNames)] = in.ExpressionAttributeValues[rhs]
	}
	if removePart != "" {
		for _, attr := range strings.Split(removePart, ", ") {
			delete(item, resolveName(attr, in.ExpressionAttributeNames))
		}
	}
	f.items[key] = item

	out := &dynamodb.UpdateItemOutput{}
	if in.ReturnValues == types.ReturnValueAllNew {
		out.Attributes = copyItem(item)
	}
	return out, nil
}

func (f *fakeDynamoDB) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	cond := aws.ToString(in.KeyConditionExpression)
	pkPart, skPart, _ := strings.Cut(cond, " AND ")
	_, pkPlaceholder, _ := strings.Cut(pkPart, " = ")
	pk := s(in.ExpressionAttributeValues[pkPlaceholder])

	prefix, exact := "", ""
	switch {
	case strings.HasPrefix(skPart, "begins_with("):
		inner := strings.TrimSuffix(strings.TrimPrefix(skPart, "begins_with(GSI1SK, "), ")")
		prefix = s(in.ExpressionAttributeValues[inner])
	case skPart != "":
		_, skPlaceholder, _ := strings.Cut(skPart, " = ")
		exact = s(in.ExpressionAttributeValues[skPlaceholder])
	}

	var matches []map[string]types.AttributeValue
	for _, item := range f.items {
		sk := s(item[attrGSI1SK])
		if s(item[attrGSI1PK]) != pk || !strings.HasPrefix(sk, prefix) {
			continue
		}
		if exact != "" && sk != exact {
			continue
		}
		matches = append(matches, copyItem(item))
	}

	sort.Slice(matches, func(i, j int) bool {
		return s(matches[i][attrGSI1SK]) < s(matches[j][attrGSI1SK])
	})
	if in.ScanIndexForward != nil && !*in.ScanIndexForward {
		for i, j := 0, len(matches)-1; i < j; i, j = i+1, j-1 {
			matches[i], matches[j] = matches[j], matches[i]
		}
	}
	if in.Limit != nil && int(*in.Limit) < len(matches) {
		matches = matches[:*in.Limit]
	}

	return &dynamodb.QueryOutput{Items: matches, Count: int32(len(matches))}, nil
}

func evalCondition(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) bool {
	for _, term := range strings.Split(expr, " AND ") {
		switch {
		case strings.HasPrefix(term, "attribute_not_exists("):
			attr := strings.TrimSuffix(strings.TrimPrefix(term, "attribute_not_exists("), ")")
			if _, ok := item[resolveName(attr, names)]; ok {
				return false
			}
		case strings.HasPrefix(term, "attribute_exists("):
			attr := strings.TrimSuffix(strings.TrimPrefix(term, "attribute_exists("), ")")
			if _, ok := item[resolveName(attr, names)]; !ok {
				return false
			}
		default:
			path, placeholder, ok := strings.Cut(term, " = ")
			if !ok {
				panic(fmt.Sprintf("fake dynamodb: unsupported condition %q", term))
			}
			got := lookupPath(item, path, names)
			if got == nil || !reflect.DeepEqual(got, values[placeholder]) {
				return false
			}
		}
	}
	return true
}

func lookupPath(item map[string]types.AttributeValue, path string, names map[string]string) types.AttributeValue {
	parts := strings.Split(path, ".")
	current := item
	for i, part := range parts {
		v, ok := current[resolveName(part, names)]
		if !ok {
			return nil
		}
		if i == len(parts)-1 {
			return v
		}
		m, ok := v.(*types.AttributeValueMemberM)
		if !ok {
			return nil
		}
		current = m.Value
	}
	return nil
}

func resolveName(name string, names map[string]string) string {
	name = strings.TrimSpace(name)
	if actual, ok := names[name]; ok {
		return actual
	}
	return name
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
