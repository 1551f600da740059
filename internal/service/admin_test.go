package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"capmail/backend/internal/cache"
	"capmail/backend/internal/domain"
)

func TestAdminService_SearchAddresses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "tmp")

	for _, name := range []string{"alice", "bob", "alfred"} {
		_, err := f.directory.Provision(ctx, name, "example.com")
		require.NoError(t, err)
	}

	t.Run("不带查询", func(t *testing.T) {
		page, err := f.admin.SearchAddresses(ctx, "", domain.Page{Limit: 2})
		require.NoError(t, err)
		require.Len(t, page.Results, 2)
		assert.Equal(t, int64(3), page.Count)
		assert.Equal(t, "tmpalfred@example.com", page.Results[0].Name)
	})

	t.Run("按展示名匹配", func(t *testing.T) {
		page, err := f.admin.SearchAddresses(ctx, "TMPAL", domain.Page{Limit: 10})
		require.NoError(t, err)
		assert.Len(t, page.Results, 2)
		assert.Equal(t, int64(2), page.Count)
	})

	t.Run("非第一页不计数", func(t *testing.T) {
		page, err := f.admin.SearchAddresses(ctx, "", domain.Page{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, page.Results, 1)
		assert.Zero(t, page.Count)
	})
}

func TestAdminService_ListMail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "tmp")

	p, err := f.directory.Provision(ctx, "alice", "example.com")
	require.NoError(t, err)

	require.NoError(t, f.store.SaveMail(ctx, &domain.Mail{Address: p.Address, MessageID: strPtr("m1")}))
	require.NoError(t, f.store.SaveMail(ctx, &domain.Mail{Address: "tmpgone@example.com", MessageID: strPtr("m2")}))
	require.NoError(t, f.store.SaveMail(ctx, &domain.Mail{Address: "external@example.org"}))
	require.NoError(t, f.store.SaveAttachment(ctx, &domain.Attachment{ID: "a2", MessageID: "m2", Data: "{}"}))

	t.Run("地址必填", func(t *testing.T) {
		_, err := f.admin.ListMailFor(ctx, " ", domain.Page{Limit: 10})
		assert.ErrorIs(t, err, domain.ErrInvalidAddress)
	})

	t.Run("指定地址", func(t *testing.T) {
		page, err := f.admin.ListMailFor(ctx, p.Address, domain.Page{Limit: 10})
		require.NoError(t, err)
		require.Len(t, page.Results, 1)
		assert.Equal(t, p.Address, page.Results[0].Address)
	})

	t.Run("孤立邮件", func(t *testing.T) {
		page, err := f.admin.ListOrphanedMail(ctx, domain.Page{Limit: 10})
		require.NoError(t, err)
		require.Len(t, page.Results, 2)
		assert.Equal(t, int64(2), page.Count)
		assert.Equal(t, "external@example.org", page.Results[0].Address)
		assert.Equal(t, "tmpgone@example.com", page.Results[1].Address)
		assert.Equal(t, "a2", page.Results[1].AttachmentID)
	})

	t.Run("删除地址同时删除其邮件", func(t *testing.T) {
		require.NoError(t, f.admin.DeleteAddress(ctx, p.ID))

		page, err := f.admin.ListOrphanedMail(ctx, domain.Page{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Count)

		mails, err := f.admin.ListMailFor(ctx, p.Address, domain.Page{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, mails.Results)
	})
}

func TestAdminService_Statistics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "tmp")
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	f.directory.now = func() time.Time { return now.Add(-30 * 24 * time.Hour) }
	_, err := f.directory.Provision(ctx, "old", "example.com")
	require.NoError(t, err)

	f.directory.now = func() time.Time { return now }
	_, err = f.directory.Provision(ctx, "new", "example.com")
	require.NoError(t, err)

	require.NoError(t, f.store.SaveMail(ctx, &domain.Mail{Address: "tmpnew@example.com"}))

	f.admin.now = func() time.Time { return now }
	stats, err := f.admin.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Statistics{MailCount: 1, AddressCount: 2, ActiveAddressCount: 1}, *stats)

	t.Run("使用缓存", func(t *testing.T) {
		local := cache.NewLocalCache(time.Minute)
		t.Cleanup(local.Close)

		cached := NewAdminService(f.store, f.directory, f.mailbox, zap.NewNop(), nil, WithStatisticsCache(local, time.Minute))
		cached.now = func() time.Time { return now }

		first, err := cached.Statistics(ctx)
		require.NoError(t, err)

		require.NoError(t, f.store.SaveMail(ctx, &domain.Mail{Address: "tmpnew@example.com"}))

		second, err := cached.Statistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.MailCount, second.MailCount)
	})
}

func TestAdminService_DeleteAndReissue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "tmp")

	p, err := f.directory.Provision(ctx, "alice", "example.com")
	require.NoError(t, err)
	require.NoError(t, f.store.SaveMail(ctx, &domain.Mail{Address: p.Address}))
	require.NoError(t, f.store.SaveMail(ctx, &domain.Mail{Address: "tmpbob@example.com"}))

	t.Run("重新签发令牌", func(t *testing.T) {
		token, err := f.admin.ReissueToken(ctx, p.ID)
		require.NoError(t, err)

		claim, err := f.tokens.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, domain.Claim{Address: p.Address, AddressID: p.ID}, claim)

		_, err = f.directory.ValidateClaim(ctx, claim)
		assert.NoError(t, err)
	})

	t.Run("不存在的 ID", func(t *testing.T) {
		_, err := f.admin.ReissueToken(ctx, p.ID+100)
		assert.ErrorIs(t, err, domain.ErrAddressNotFound)

		assert.ErrorIs(t, f.admin.DeleteAddress(ctx, 0), domain.ErrAddressNotFound)
	})

	t.Run("删除地址及其邮件", func(t *testing.T) {
		require.NoError(t, f.admin.DeleteAddress(ctx, p.ID))

		_, err := f.store.GetAddressByID(ctx, p.ID)
		assert.Error(t, err)

		total, err := f.store.CountAllMails(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)

		assert.ErrorIs(t, f.admin.DeleteAddress(ctx, p.ID), domain.ErrAddressNotFound)
	})
}
