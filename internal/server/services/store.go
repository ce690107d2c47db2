// Package services holds the store server's business logic between the HTTP
// surface and the repositories.
package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/avetrano/matrixflow/internal/common"
	"github.com/avetrano/matrixflow/internal/dbx"
	"github.com/avetrano/matrixflow/internal/model"
	"github.com/avetrano/matrixflow/internal/server/auth"
	sc "github.com/avetrano/matrixflow/internal/server/config"
	"github.com/avetrano/matrixflow/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Seams for the AWS SDK, replaceable in tests.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}
	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return c.GetObject(ctx, in)
	}
)

// StoreService implements the member and utility operations of the store
// contract over Postgres, with oversized attachment payloads offloaded to
// S3-compatible object storage.
type StoreService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
}

func NewStoreService(db *sql.DB, m repomanager.RepositoryManager, config *sc.Config) *StoreService {
	return &StoreService{
		db:          db,
		repomanager: m,
		config:      config,
	}
}

// GetRandomStorageKey builds a date-sharded object key for one attachment.
func GetRandomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("bills/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *StoreService) getS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,     // MINIO_ROOT_USER
			s.config.S3RootPassword, // MINIO_ROOT_PASSWORD
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	}), nil
}

// ListMembers returns every member with lite utilities attached: payloads
// omitted, HasAttachment set.
func (s *StoreService) ListMembers(ctx context.Context) ([]model.Member, error) {
	members, err := s.repomanager.Members(s.db).SelectAll(ctx)
	if err != nil {
		return nil, err
	}
	byOwner, err := s.repomanager.Utilities(s.db).SelectAllLite(ctx)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if utilities, ok := byOwner[members[i].ID]; ok {
			members[i].Utilities = utilities
		}
	}
	return members, nil
}

// Register appends a member row, enforcing username uniqueness inside a
// transaction.
func (s *StoreService) Register(ctx context.Context, m *model.Member) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Members(tx)
		exists, err := repo.ExistsUsername(ctx, m.Username)
		if err != nil {
			return err
		}
		if exists {
			return common.ErrDuplicateUsername
		}
		return repo.Insert(ctx, m)
	})
}

// AddUtility stores a utility row. Attachment payloads above the inline limit
// are written to object storage and replaced by the object key.
func (s *StoreService) AddUtility(ctx context.Context, memberID string, u *model.Utility) error {
	if len(u.AttachmentData) > common.MaxInlineAttachmentBytes {
		client, err := s.getS3Client(ctx)
		if err != nil {
			return fmt.Errorf("s3 client: %w", err)
		}
		key := GetRandomStorageKey()
		_, err = putObject(client, ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.config.S3Bucket),
			Key:         aws.String(key),
			Body:        strings.NewReader(u.AttachmentData),
			ContentType: aws.String(u.AttachmentType),
		})
		if err != nil {
			return fmt.Errorf("offload attachment: %w", err)
		}
		u.AttachmentKey = key
		u.AttachmentData = ""
	}
	return s.repomanager.Utilities(s.db).Insert(ctx, memberID, u)
}

// UpdateMember patches a member's profile fields.
func (s *StoreService) UpdateMember(ctx context.Context, memberID string, patch model.MemberPatch) error {
	return s.repomanager.Members(s.db).UpdateFields(ctx, memberID, patch)
}

// UpdateUtilityStatus moves a utility to a new review state.
func (s *StoreService) UpdateUtilityStatus(ctx context.Context, utilityID string, status model.UtilityStatus) error {
	return s.repomanager.Utilities(s.db).UpdateStatus(ctx, utilityID, status)
}

// Attachment returns the base64 payload of one utility document, pulling it
// back from object storage when the row only holds a key.
func (s *StoreService) Attachment(ctx context.Context, utilityID string) (string, error) {
	a, err := s.repomanager.Utilities(s.db).GetAttachment(ctx, utilityID)
	if err != nil {
		return "", err
	}
	if a.Key == "" {
		return a.Data, nil
	}

	client, err := s.getS3Client(ctx)
	if err != nil {
		return "", fmt.Errorf("s3 client: %w", err)
	}
	out, err := getObject(client, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(a.Key),
	})
	if err != nil {
		return "", fmt.Errorf("fetch attachment: %w", err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		return "", fmt.Errorf("read attachment: %w", err)
	}
	return buf.String(), nil
}

// AdminLogin checks the credentials against the members table and mints an
// admin token. Non-admin members are refused.
func (s *StoreService) AdminLogin(ctx context.Context, username, password string) (string, error) {
	m, err := s.repomanager.Members(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.ErrInvalidCredentials
		}
		return "", err
	}
	if m.Password != password {
		return "", common.ErrInvalidCredentials
	}
	if m.Role != model.RoleAdmin {
		return "", common.ErrNotAuthorized
	}
	return auth.GenerateToken(m.Username, []byte(s.config.SecretKey), s.config.AdminTokenValidityDuration)
}

// VerifyAdminToken validates a bearer token minted by AdminLogin and returns
// the admin username.
func (s *StoreService) VerifyAdminToken(token string) (string, error) {
	return auth.GetUsernameFromToken(token, []byte(s.config.SecretKey))
}
