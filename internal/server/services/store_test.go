package services

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/avetrano/matrixflow/internal/common"
	"github.com/avetrano/matrixflow/internal/dbx"
	"github.com/avetrano/matrixflow/internal/model"
	sc "github.com/avetrano/matrixflow/internal/server/config"
	"github.com/avetrano/matrixflow/internal/server/repositories/members"
	"github.com/avetrano/matrixflow/internal/server/repositories/utilities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeMembersRepo struct {
	byUsername map[string]model.Member
	inserted   []model.Member
	patched    map[string]model.MemberPatch
}

func (f *fakeMembersRepo) Insert(_ context.Context, m *model.Member) error {
	f.inserted = append(f.inserted, *m)
	return nil
}

func (f *fakeMembersRepo) SelectAll(_ context.Context) ([]model.Member, error) {
	result := []model.Member{}
	for _, m := range f.byUsername {
		result = append(result, m)
	}
	return result, nil
}

func (f *fakeMembersRepo) GetByUsername(_ context.Context, username string) (*model.Member, error) {
	m, ok := f.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &m, nil
}

func (f *fakeMembersRepo) ExistsUsername(_ context.Context, username string) (bool, error) {
	_, ok := f.byUsername[strings.ToLower(username)]
	return ok, nil
}

func (f *fakeMembersRepo) UpdateFields(_ context.Context, id string, patch model.MemberPatch) error {
	if f.patched == nil {
		f.patched = map[string]model.MemberPatch{}
	}
	f.patched[id] = patch
	return nil
}

type fakeUtilitiesRepo struct {
	inserted   []model.Utility
	owners     []string
	attachment *utilities.Attachment
}

func (f *fakeUtilitiesRepo) Insert(_ context.Context, memberID string, u *model.Utility) error {
	f.owners = append(f.owners, memberID)
	f.inserted = append(f.inserted, *u)
	return nil
}

func (f *fakeUtilitiesRepo) SelectAllLite(_ context.Context) (map[string][]model.Utility, error) {
	return map[string][]model.Utility{}, nil
}

func (f *fakeUtilitiesRepo) UpdateStatus(_ context.Context, utilityID string, status model.UtilityStatus) error {
	return nil
}

func (f *fakeUtilitiesRepo) GetAttachment(_ context.Context, utilityID string) (*utilities.Attachment, error) {
	if f.attachment == nil {
		return nil, common.ErrNotFound
	}
	return f.attachment, nil
}

type fakeManager struct {
	members   *fakeMembersRepo
	utilities *fakeUtilitiesRepo
}

func (f *fakeManager) Members(dbx.DBTX) members.Repository       { return f.members }
func (f *fakeManager) Utilities(dbx.DBTX) utilities.Repository   { return f.utilities }
func (f *fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func testConfig() *sc.Config {
	cfg := &sc.Config{}
	cfg.LoadDefaults()
	return cfg
}

func stubS3(t *testing.T) (puts *[]string, gets *[]string, body *string) {
	t.Helper()

	var putKeys, getKeys []string
	returned := "remote-payload"

	origLoad, origNew, origPut, origGet := loadDefaultAWSConfig, newS3ClientFromConfig, putObject, getObject
	t.Cleanup(func() {
		loadDefaultAWSConfig, newS3ClientFromConfig, putObject, getObject = origLoad, origNew, origPut, origGet
	})

	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(aws.Config, ...func(*s3.Options)) *s3.Client { return nil }
	putObject = func(_ *s3.Client, _ context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		putKeys = append(putKeys, *in.Key)
		return &s3.PutObjectOutput{}, nil
	}
	getObject = func(_ *s3.Client, _ context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		getKeys = append(getKeys, *in.Key)
		return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(returned))}, nil
	}
	return &putKeys, &getKeys, &returned
}

func TestAddUtility_SmallPayloadStaysInline(t *testing.T) {
	m := &fakeManager{members: &fakeMembersRepo{}, utilities: &fakeUtilitiesRepo{}}
	s := NewStoreService(nil, m, testConfig())
	puts, _, _ := stubS3(t)

	u := &model.Utility{ID: "u1", AttachmentData: "QUJD"}
	require.NoError(t, s.AddUtility(context.Background(), "m1", u))

	assert.Empty(t, *puts, "no object storage call for inline payloads")
	require.Len(t, m.utilities.inserted, 1)
	assert.Equal(t, "QUJD", m.utilities.inserted[0].AttachmentData)
	assert.Empty(t, m.utilities.inserted[0].AttachmentKey)
}

func TestAddUtility_OversizedPayloadOffloadsToS3(t *testing.T) {
	m := &fakeManager{members: &fakeMembersRepo{}, utilities: &fakeUtilitiesRepo{}}
	s := NewStoreService(nil, m, testConfig())
	puts, _, _ := stubS3(t)

	big := strings.Repeat("A", common.MaxInlineAttachmentBytes+1)
	u := &model.Utility{ID: "u1", AttachmentData: big}
	require.NoError(t, s.AddUtility(context.Background(), "m1", u))

	require.Len(t, *puts, 1)
	require.Len(t, m.utilities.inserted, 1)
	stored := m.utilities.inserted[0]
	assert.Empty(t, stored.AttachmentData, "payload moved out of the row")
	assert.Equal(t, (*puts)[0], stored.AttachmentKey)
}

func TestAttachment_InlineRow(t *testing.T) {
	m := &fakeManager{
		members:   &fakeMembersRepo{},
		utilities: &fakeUtilitiesRepo{attachment: &utilities.Attachment{Data: "QUJD"}},
	}
	s := NewStoreService(nil, m, testConfig())
	_, gets, _ := stubS3(t)

	payload, err := s.Attachment(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "QUJD", payload)
	assert.Empty(t, *gets)
}

func TestAttachment_OffloadedRowFetchesFromS3(t *testing.T) {
	m := &fakeManager{
		members:   &fakeMembersRepo{},
		utilities: &fakeUtilitiesRepo{attachment: &utilities.Attachment{Key: "bills/2025/6/2/abc"}},
	}
	s := NewStoreService(nil, m, testConfig())
	_, gets, body := stubS3(t)

	payload, err := s.Attachment(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, *body, payload)
	assert.Equal(t, []string{"bills/2025/6/2/abc"}, *gets)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := &fakeManager{
		members: &fakeMembersRepo{byUsername: map[string]model.Member{
			"admin": {ID: "root-001", Username: "admin"},
		}},
		utilities: &fakeUtilitiesRepo{},
	}
	s := NewStoreService(db, m, testConfig())

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = s.Register(context.Background(), &model.Member{Username: "Admin"})
	assert.ErrorIs(t, err, common.ErrDuplicateUsername)
	assert.Empty(t, m.members.inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_Inserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := &fakeManager{members: &fakeMembersRepo{}, utilities: &fakeUtilitiesRepo{}}
	s := NewStoreService(db, m, testConfig())

	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, s.Register(context.Background(), &model.Member{ID: "m1", Username: "alice"}))
	require.Len(t, m.members.inserted, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminLogin(t *testing.T) {
	m := &fakeManager{
		members: &fakeMembersRepo{byUsername: map[string]model.Member{
			"admin": {ID: "root-001", Username: "admin", Password: "password", Role: model.RoleAdmin},
			"alice": {ID: "m1", Username: "alice", Password: "pw", Role: model.RoleMember},
		}},
		utilities: &fakeUtilitiesRepo{},
	}
	s := NewStoreService(nil, m, testConfig())
	ctx := context.Background()

	token, err := s.AdminLogin(ctx, "admin", "password")
	require.NoError(t, err)
	who, err := s.VerifyAdminToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", who)

	_, err = s.AdminLogin(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = s.AdminLogin(ctx, "ghost", "pw")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = s.AdminLogin(ctx, "alice", "pw")
	assert.ErrorIs(t, err, common.ErrNotAuthorized)
}
