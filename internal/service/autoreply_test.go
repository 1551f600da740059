package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capmail/backend/internal/domain"
)

func TestAutoReplyService_GetSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "tmp")

	p, err := f.directory.Provision(ctx, "alice", "example.com")
	require.NoError(t, err)
	claim := domain.Claim{Address: p.Address, AddressID: p.ID}

	t.Run("未配置时返回空设置", func(t *testing.T) {
		settings, err := f.replies.Get(ctx, claim)
		require.NoError(t, err)
		assert.Equal(t, p.Address, settings.Address)
		assert.Nil(t, settings.Reply)
	})

	t.Run("整行替换", func(t *testing.T) {
		require.NoError(t, f.replies.Set(ctx, claim, domain.AutoReply{
			Name: "Alice", Subject: "away", Message: "back monday", SourcePrefix: "boss", Enabled: true,
		}))
		require.NoError(t, f.replies.Set(ctx, claim, domain.AutoReply{Subject: "draft"}))

		settings, err := f.replies.Get(ctx, claim)
		require.NoError(t, err)
		require.NotNil(t, settings.Reply)
		assert.Equal(t, "draft", settings.Reply.Subject)
		assert.Empty(t, settings.Reply.Name)
		assert.Empty(t, settings.Reply.SourcePrefix)
		assert.False(t, settings.Reply.Enabled)
	})

	t.Run("读取时刷新活跃时间", func(t *testing.T) {
		later := time.Now().Add(time.Hour)
		f.directory.now = func() time.Time { return later }
		t.Cleanup(func() { f.directory.now = time.Now })

		_, err := f.replies.Get(ctx, claim)
		require.NoError(t, err)

		addr, err := f.store.GetAddressByID(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, addr.UpdatedAt.Equal(later.UTC()))
	})
}

func TestAutoReplyService_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "tmp")

	p, err := f.directory.Provision(ctx, "bob", "example.com")
	require.NoError(t, err)
	claim := domain.Claim{Address: p.Address, AddressID: p.ID}

	tests := []struct {
		name    string
		reply   domain.AutoReply
		wantErr error
	}{
		{"启用但缺少主题", domain.AutoReply{Enabled: true, Message: "hi"}, domain.ErrMissingFields},
		{"启用但缺少正文", domain.AutoReply{Enabled: true, Subject: "hi"}, domain.ErrMissingFields},
		{"未启用可以为空", domain.AutoReply{}, nil},
		{"正文 255 字符", domain.AutoReply{Message: strings.Repeat("x", 255)}, nil},
		{"正文 256 字符", domain.AutoReply{Message: strings.Repeat("x", 256)}, domain.ErrTooLong},
		{"主题 256 字符", domain.AutoReply{Subject: strings.Repeat("主", 256)}, domain.ErrTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.replies.Set(ctx, claim, tt.reply)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAutoReplyService_StaleClaim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "tmp")

	p, err := f.directory.Provision(ctx, "carol", "example.com")
	require.NoError(t, err)
	require.NoError(t, f.admin.DeleteAddress(ctx, p.ID))

	claim := domain.Claim{Address: p.Address, AddressID: p.ID}

	_, err = f.replies.Get(ctx, claim)
	assert.ErrorIs(t, err, domain.ErrStaleAddress)

	err = f.replies.Set(ctx, claim, domain.AutoReply{Subject: "x"})
	assert.ErrorIs(t, err, domain.ErrStaleAddress)

	t.Run("未托管地址可以读写", func(t *testing.T) {
		legacy := domain.Claim{Address: "legacy@example.org"}
		require.NoError(t, f.replies.Set(ctx, legacy, domain.AutoReply{Subject: "x"}))

		settings, err := f.replies.Get(ctx, legacy)
		require.NoError(t, err)
		require.NotNil(t, settings.Reply)
		assert.Equal(t, "x", settings.Reply.Subject)
	})
}
