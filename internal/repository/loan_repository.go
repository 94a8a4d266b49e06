package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/creditsea/creditsea/internal/models"
	"github.com/sirupsen/logrus"
)

const loanSortPrefix = "LOAN#"

type LoanRepository struct {
	client    DynamoDBAPI
	tableName string
	indexName string
	logger    *logrus.Logger
}

func NewLoanRepository(client DynamoDBAPI, tableName, indexName string, logger *logrus.Logger) *LoanRepository {
	return &LoanRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

func (r *LoanRepository) Create(ctx context.Context, app *models.LoanApplication) error {
	item, err := attributevalue.MarshalMap(app)
	if err != nil {
		r.logger.WithError(err).Error("Failed to marshal loan application for DynamoDB")
		return fmt.Errorf("failed to marshal loan application: %w", err)
	}

	item[attrPK] = stringValue(app.GetPK())
	item[attrSK] = stringValue(app.GetSK())
	item[attrGSI1PK] = stringValue(userIndexKey(app.UserID))
	item[attrGSI1SK] = stringValue(loanSortPrefix + app.AppliedDate.UTC().Format(sortableTime) + "#" + app.ID)

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("loan application already exists: %w", ErrConflict)
		}
		r.logger.WithError(err).Error("Failed to create loan application in DynamoDB")
		return fmt.Errorf("failed to create loan application: %w", err)
	}

	return nil
}

// GetByID returns nil, nil when the application does not exist.
func (r *LoanRepository) GetByID(ctx context.Context, id string) (*models.LoanApplication, error) {
	app := &models.LoanApplication{ID: id}

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            itemKey(app.GetPK(), app.GetSK()),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get loan application from DynamoDB")
		return nil, fmt.Errorf("failed to get loan application: %w", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	if err := attributevalue.UnmarshalMap(result.Item, app); err != nil {
		return nil, fmt.Errorf("failed to unmarshal loan application: %w", err)
	}

	return app, nil
}

// ListByUser returns the user's applications, most recently applied first.
func (r *LoanRepository) ListByUser(ctx context.Context, userID string) ([]models.LoanApplication, error) {
	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(r.indexName),
		KeyConditionExpression: aws.String("GSI1PK = :pk AND begins_with(GSI1SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     stringValue(userIndexKey(userID)),
			":prefix": stringValue(loanSortPrefix),
		},
		ScanIndexForward: aws.Bool(false),
	})

	apps := []models.LoanApplication{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			r.logger.WithError(err).Error("Failed to query loan applications")
			return nil, fmt.Errorf("failed to list loan applications: %w", err)
		}

		var batch []models.LoanApplication
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal loan applications: %w", err)
		}
		apps = append(apps, batch...)
	}

	return apps, nil
}

// UpdateStatus moves an application from one status to another. It fails
// with ErrConflict if the stored status is no longer from.
func (r *LoanRepository) UpdateStatus(ctx context.Context, id string, from, to models.LoanStatus, at time.Time) (*models.LoanApplication, error) {
	app := &models.LoanApplication{ID: id}

	result, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 itemKey(app.GetPK(), app.GetSK()),
		UpdateExpression:    aws.String("SET #status = :to, updated_at = :updated_at"),
		ConditionExpression: aws.String("attribute_exists(PK) AND #status = :from"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":to":         stringValue(string(to)),
			":from":       stringValue(string(from)),
			":updated_at": timeValue(at),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, ErrConflict
		}
		r.logger.WithError(err).Error("Failed to update loan application status")
		return nil, fmt.Errorf("failed to update loan application: %w", err)
	}

	if err := attributevalue.UnmarshalMap(result.Attributes, app); err != nil {
		return nil, fmt.Errorf("failed to unmarshal loan application: %w", err)
	}

	return app, nil
}
