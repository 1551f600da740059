package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"capmail/backend/internal/auth/jwt"
	"capmail/backend/internal/domain"
	"capmail/backend/internal/storage"
	"capmail/backend/internal/storage/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// MockStore 模拟存储接口，只覆盖测试需要的方法
type MockStore struct {
	storage.Store
	mock.Mock
}

func (m *MockStore) CreateAddress(ctx context.Context, name string, now time.Time) error {
	args := m.Called(ctx, name, now)
	return args.Error(0)
}

func (m *MockStore) GetAddressByID(ctx context.Context, id int64) (*domain.Address, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Address), args.Error(1)
}

func (m *MockStore) GetAddressByName(ctx context.Context, name string) (*domain.Address, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Address), args.Error(1)
}

func (m *MockStore) TouchAddress(ctx context.Context, name string, at time.Time) error {
	args := m.Called(ctx, name, at)
	return args.Error(0)
}

func (m *MockStore) DeleteAddressCascade(ctx context.Context, id int64, address string) (int64, error) {
	args := m.Called(ctx, id, address)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) DeleteMailsByAddress(ctx context.Context, address string) (int64, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(int64), args.Error(1)
}

type fixture struct {
	store     *memory.Store
	tokens    *jwt.Manager
	directory *Directory
	mailbox   *MailboxService
	admin     *AdminService
	replies   *AutoReplyService
}

func newFixture(t *testing.T, prefix string) *fixture {
	t.Helper()

	store := memory.NewStore()
	tokens := jwt.NewManager(testSecret, 0)
	logger := zap.NewNop()

	directory := NewDirectory(store, domain.NewPrefixPolicy(prefix), []string{"example.com", "test.dev"}, tokens, logger, nil)
	mailbox := NewMailboxService(store, logger, nil)

	return &fixture{
		store:     store,
		tokens:    tokens,
		directory: directory,
		mailbox:   mailbox,
		admin:     NewAdminService(store, directory, mailbox, logger, nil),
		replies:   NewAutoReplyService(store, directory),
	}
}

func TestDirectory_Provision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "tmp")

	t.Run("随机名字与随机域名", func(t *testing.T) {
		p, err := f.directory.Provision(ctx, "", "")
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(p.Address, "tmp"))
		local, host, ok := strings.Cut(strings.TrimPrefix(p.Address, "tmp"), "@")
		require.True(t, ok)
		assert.Len(t, local, randomNameLength)
		assert.Contains(t, []string{"example.com", "test.dev"}, host)
		assert.Greater(t, p.ID, int64(0))

		claim, err := f.tokens.Verify(p.Token)
		require.NoError(t, err)
		assert.Equal(t, domain.Claim{Address: p.Address, AddressID: p.ID}, claim)
	})

	t.Run("指定名字与域名", func(t *testing.T) {
		p, err := f.directory.Provision(ctx, "Alice", "TEST.dev")
		require.NoError(t, err)
		assert.Equal(t, "tmpalice@test.dev", p.Address)

		id, err := f.directory.ResolveID(ctx, "alice@test.dev")
		require.NoError(t, err)
		assert.Equal(t, p.ID, id)
	})

	t.Run("不允许的域名随机替换", func(t *testing.T) {
		p, err := f.directory.Provision(ctx, "bob", "evil.org")
		require.NoError(t, err)
		assert.NotContains(t, p.Address, "evil.org")
	})

	t.Run("名字冲突", func(t *testing.T) {
		_, err := f.directory.Provision(ctx, "carol", "example.com")
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			_, err = f.directory.Provision(ctx, "carol", "example.com")
			assert.ErrorIs(t, err, domain.ErrNameTaken)
		}
	})

	t.Run("非法名字", func(t *testing.T) {
		_, err := f.directory.Provision(ctx, "bad name!", "example.com")
		assert.ErrorIs(t, err, domain.ErrInvalidName)
	})
}

func TestDirectory_ResolveID_NotFound(t *testing.T) {
	f := newFixture(t, "tmp")
	_, err := f.directory.ResolveID(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrAddressNotFound)
}

func TestDirectory_ValidateClaim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "tmp")

	p, err := f.directory.Provision(ctx, "alice", "example.com")
	require.NoError(t, err)

	t.Run("带 ID 的有效声明", func(t *testing.T) {
		addr, err := f.directory.ValidateClaim(ctx, domain.Claim{Address: p.Address, AddressID: p.ID})
		require.NoError(t, err)
		assert.True(t, addr.Managed)
		assert.Equal(t, "alice@example.com", addr.Name)
		assert.Equal(t, p.ID, addr.ID)
	})

	t.Run("不带 ID 的托管地址", func(t *testing.T) {
		addr, err := f.directory.ValidateClaim(ctx, domain.Claim{Address: p.Address})
		require.NoError(t, err)
		assert.Equal(t, p.ID, addr.ID)

		_, err = f.directory.ValidateClaim(ctx, domain.Claim{Address: "tmpghost@example.com"})
		assert.ErrorIs(t, err, domain.ErrStaleAddress)
	})

	t.Run("未托管地址直接接受", func(t *testing.T) {
		addr, err := f.directory.ValidateClaim(ctx, domain.Claim{Address: "legacy@example.com"})
		require.NoError(t, err)
		assert.False(t, addr.Managed)
		assert.Equal(t, "legacy@example.com", addr.Address)
	})

	t.Run("ID 与地址不一致", func(t *testing.T) {
		other, err := f.directory.Provision(ctx, "mallory", "example.com")
		require.NoError(t, err)

		_, err = f.directory.ValidateClaim(ctx, domain.Claim{Address: p.Address, AddressID: other.ID})
		assert.ErrorIs(t, err, domain.ErrStaleAddress)
	})

	t.Run("删除后同名重建，旧令牌失效", func(t *testing.T) {
		old, err := f.directory.Provision(ctx, "dave", "example.com")
		require.NoError(t, err)
		oldClaim, err := f.tokens.Verify(old.Token)
		require.NoError(t, err)

		require.NoError(t, f.admin.DeleteAddress(ctx, old.ID))

		fresh, err := f.directory.Provision(ctx, "dave", "example.com")
		require.NoError(t, err)
		assert.Equal(t, old.Address, fresh.Address)
		assert.NotEqual(t, old.ID, fresh.ID)

		_, err = f.directory.ValidateClaim(ctx, oldClaim)
		assert.ErrorIs(t, err, domain.ErrStaleAddress)

		freshClaim, err := f.tokens.Verify(fresh.Token)
		require.NoError(t, err)
		_, err = f.directory.ValidateClaim(ctx, freshClaim)
		assert.NoError(t, err)
	})
}

func TestDirectory_ValidateClaim_EmptyPrefix(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")

	_, err := f.directory.ValidateClaim(ctx, domain.Claim{Address: "anyone@example.com"})
	assert.ErrorIs(t, err, domain.ErrStaleAddress)

	p, err := f.directory.Provision(ctx, "anyone", "example.com")
	require.NoError(t, err)
	assert.Equal(t, "anyone@example.com", p.Address)

	_, err = f.directory.ValidateClaim(ctx, domain.Claim{Address: "anyone@example.com"})
	assert.NoError(t, err)
}

func TestDirectory_StoreErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")

	store := new(MockStore)
	directory := NewDirectory(store, domain.NewPrefixPolicy("tmp"), []string{"example.com"}, jwt.NewManager(testSecret, 0), zap.NewNop(), nil)

	t.Run("校验时存储错误原样返回", func(t *testing.T) {
		store.On("GetAddressByID", ctx, int64(7)).Return(nil, boom).Once()

		_, err := directory.ValidateClaim(ctx, domain.Claim{Address: "tmpa@example.com", AddressID: 7})
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, domain.KindOf(err))
	})

	t.Run("创建失败", func(t *testing.T) {
		store.On("CreateAddress", ctx, "zed@example.com", mock.AnythingOfType("time.Time")).Return(boom).Once()

		_, err := directory.Provision(ctx, "zed", "example.com")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("刷新失败不影响调用方", func(t *testing.T) {
		store.On("TouchAddress", ctx, "a@example.com", mock.AnythingOfType("time.Time")).Return(boom).Once()

		assert.NotPanics(t, func() {
			directory.Touch(ctx, domain.ValidatedAddress{Address: "tmpa@example.com", Name: "a@example.com", ID: 1, Managed: true})
		})
	})

	t.Run("未托管地址不刷新", func(t *testing.T) {
		directory.Touch(ctx, domain.ValidatedAddress{Address: "legacy@example.com"})
	})

	store.AssertExpectations(t)
}

func TestDirectory_Release(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "tmp")

	p, err := f.directory.Provision(ctx, "erin", "example.com")
	require.NoError(t, err)
	require.NoError(t, f.store.SaveMail(ctx, &domain.Mail{Address: p.Address, Subject: "hi"}))
	require.NoError(t, f.store.SaveMail(ctx, &domain.Mail{Address: "tmpother@example.com"}))

	addr, err := f.directory.ValidateClaim(ctx, domain.Claim{Address: p.Address, AddressID: p.ID})
	require.NoError(t, err)

	deleted, err := f.directory.Release(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = f.directory.ValidateClaim(ctx, domain.Claim{Address: p.Address, AddressID: p.ID})
	assert.ErrorIs(t, err, domain.ErrStaleAddress)

	total, err := f.store.CountAllMails(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestDirectory_ReleaseUsesCascade(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("tx aborted")

	store := new(MockStore)
	directory := NewDirectory(store, domain.NewPrefixPolicy("tmp"), []string{"example.com"}, jwt.NewManager(testSecret, 0), zap.NewNop(), nil)

	t.Run("托管地址在一个事务中删除地址和邮件", func(t *testing.T) {
		store.On("DeleteAddressCascade", ctx, int64(3), "tmpa@example.com").Return(int64(2), nil).Once()

		deleted, err := directory.Release(ctx, domain.ValidatedAddress{Address: "tmpa@example.com", ID: 3, Managed: true})
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)
	})

	t.Run("事务失败时返回错误", func(t *testing.T) {
		store.On("DeleteAddressCascade", ctx, int64(4), "tmpb@example.com").Return(int64(0), boom).Once()

		_, err := directory.Release(ctx, domain.ValidatedAddress{Address: "tmpb@example.com", ID: 4, Managed: true})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("非托管地址只删除邮件", func(t *testing.T) {
		store.On("DeleteMailsByAddress", ctx, "legacy@example.com").Return(int64(1), nil).Once()

		deleted, err := directory.Release(ctx, domain.ValidatedAddress{Address: "legacy@example.com"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})

	store.AssertExpectations(t)
}
