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
)

// The outstanding OTP lives on the user item itself, so there is exactly one
// code per phone number and issuing a new one replaces the previous code.

// StoreOTP attaches a fresh code to the user and resets the verified flag.
func (r *UserRepository) StoreOTP(ctx context.Context, phoneNumber string, otp models.OTP) error {
	user := &models.User{PhoneNumber: phoneNumber}

	otpValue, err := attributevalue.Marshal(otp)
	if err != nil {
		return fmt.Errorf("failed to marshal OTP: %w", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 itemKey(user.GetPK(), user.GetSK()),
		UpdateExpression:    aws.String("SET #otp = :otp, is_verified = :verified, updated_at = :updated_at"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: map[string]string{
			"#otp": "otp",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":otp":        otpValue,
			":verified":   &types.AttributeValueMemberBOOL{Value: false},
			":updated_at": timeValue(time.Now()),
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrNotFound
		}
		r.logger.WithError(err).Error("Failed to store OTP in DynamoDB")
		return fmt.Errorf("failed to store OTP: %w", err)
	}

	return nil
}

// MarkVerified clears the stored code and flags the user as verified, but
// only while code is still the outstanding one. Otherwise ErrConflict.
func (r *UserRepository) MarkVerified(ctx context.Context, phoneNumber, code string) error {
	user := &models.User{PhoneNumber: phoneNumber}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 itemKey(user.GetPK(), user.GetSK()),
		UpdateExpression:    aws.String("SET is_verified = :verified, updated_at = :updated_at REMOVE #otp"),
		ConditionExpression: aws.String("#otp.code = :code"),
		ExpressionAttributeNames: map[string]string{
			"#otp": "otp",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":code":       stringValue(code),
			":verified":   &types.AttributeValueMemberBOOL{Value: true},
			":updated_at": timeValue(time.Now()),
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrConflict
		}
		r.logger.WithError(err).Error("Failed to mark user verified in DynamoDB")
		return fmt.Errorf("failed to verify OTP: %w", err)
	}

	return nil
}
