package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/creditsea/creditsea/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type UserRepository struct {
	client    DynamoDBAPI
	tableName string
	indexName string
	logger    *logrus.Logger
}

func NewUserRepository(client DynamoDBAPI, tableName, indexName string, logger *logrus.Logger) *UserRepository {
	return &UserRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

// GetByPhoneNumber returns nil, nil when no user exists for the number.
func (r *UserRepository) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*models.User, error) {
	user := &models.User{PhoneNumber: phoneNumber}

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            itemKey(user.GetPK(), user.GetSK()),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get user from DynamoDB")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	return r.unmarshal(result.Item)
}

// GetByID resolves a session's user id through the secondary index. Loan
// items share the partition, so the sort key pins the user item.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(r.indexName),
		KeyConditionExpression: aws.String("GSI1PK = :pk AND GSI1SK = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": stringValue(userIndexKey(id)),
			":sk": stringValue(metadataSK),
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to query user by id")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if len(result.Items) == 0 {
		return nil, nil
	}

	return r.unmarshal(result.Items[0])
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.CreatedAt

	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		r.logger.WithError(err).Error("Failed to marshal user for DynamoDB")
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	item[attrPK] = stringValue(user.GetPK())
	item[attrSK] = stringValue(user.GetSK())
	item[attrGSI1PK] = stringValue(userIndexKey(user.ID))
	item[attrGSI1SK] = stringValue(metadataSK)

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("user already exists: %w", ErrConflict)
		}
		r.logger.WithError(err).Error("Failed to create user in DynamoDB")
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// UpdateProfile overwrites the profile fields; empty fields are removed.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()

	sets := []string{"updated_at = :updated_at"}
	var removes []string
	names := map[string]string{}
	values := map[string]types.AttributeValue{
		":updated_at": timeValue(user.UpdatedAt),
	}

	field := func(attr, value string) {
		placeholder := "#" + attr
		names[placeholder] = attr
		if value == "" {
			removes = append(removes, placeholder)
			return
		}
		sets = append(sets, fmt.Sprintf("%s = :%s", placeholder, attr))
		values[":"+attr] = stringValue(value)
	}

	field("name", user.Name)
	field("email", user.Email)
	field("pan", user.PAN)
	field("gender", string(user.Gender))

	names["#dob"] = "dob"
	if user.DOB != nil {
		sets = append(sets, "#dob = :dob")
		values[":dob"] = timeValue(*user.DOB)
	} else {
		removes = append(removes, "#dob")
	}

	updateExpression := "SET " + strings.Join(sets, ", ")
	if len(removes) > 0 {
		updateExpression += " REMOVE " + strings.Join(removes, ", ")
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       itemKey(user.GetPK(), user.GetSK()),
		UpdateExpression:          aws.String(updateExpression),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrNotFound
		}
		r.logger.WithError(err).Error("Failed to update user in DynamoDB")
		return fmt.Errorf("failed to update user: %w", err)
	}

	return nil
}

func (r *UserRepository) GetOrCreate(ctx context.Context, phoneNumber string) (*models.User, error) {
	user, err := r.GetByPhoneNumber(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}

	if user != nil {
		return user, nil
	}

	newUser := models.NewUser(uuid.NewString(), phoneNumber, time.Now().UTC())
	if err := r.Create(ctx, newUser); err != nil {
		// Lost a race with a concurrent request for the same number.
		if errors.Is(err, ErrConflict) {
			return r.GetByPhoneNumber(ctx, phoneNumber)
		}
		return nil, err
	}

	return newUser, nil
}

func (r *UserRepository) unmarshal(item map[string]types.AttributeValue) (*models.User, error) {
	var user models.User
	if err := attributevalue.UnmarshalMap(item, &user); err != nil {
		r.logger.WithError(err).Error("Failed to unmarshal user from DynamoDB")
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}
