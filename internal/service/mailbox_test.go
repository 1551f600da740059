package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capmail/backend/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestMailboxService_ListMail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "tmp")
	const owner = "tmpalice@example.com"

	for i := 1; i <= 7; i++ {
		require.NoError(t, f.store.SaveMail(ctx, &domain.Mail{Address: owner, Subject: fmt.Sprintf("mail-%d", i)}))
	}
	require.NoError(t, f.store.SaveMail(ctx, &domain.Mail{Address: "tmpbob@example.com"}))

	t.Run("第一页返回总数", func(t *testing.T) {
		page, err := f.mailbox.ListMail(ctx, owner, domain.Page{Limit: 3})
		require.NoError(t, err)
		require.Len(t, page.Results, 3)
		assert.Equal(t, int64(7), page.Count)
		assert.Equal(t, "mail-7", page.Results[0].Subject)
		assert.Equal(t, "mail-5", page.Results[2].Subject)
	})

	t.Run("后续页总数为 0", func(t *testing.T) {
		page, err := f.mailbox.ListMail(ctx, owner, domain.Page{Limit: 3, Offset: 3})
		require.NoError(t, err)
		require.Len(t, page.Results, 3)
		assert.Zero(t, page.Count)
		assert.Equal(t, "mail-4", page.Results[0].Subject)
	})

	t.Run("严格按 ID 倒序且不超过 limit", func(t *testing.T) {
		for limit := 1; limit <= 8; limit++ {
			for offset := 0; offset <= 8; offset++ {
				page, err := f.mailbox.ListMail(ctx, owner, domain.Page{Limit: limit, Offset: offset})
				require.NoError(t, err)
				assert.LessOrEqual(t, len(page.Results), limit)
				for i := 1; i < len(page.Results); i++ {
					assert.Greater(t, page.Results[i-1].ID, page.Results[i].ID)
				}
				if offset == 0 {
					assert.Equal(t, int64(7), page.Count)
				} else {
					assert.Zero(t, page.Count)
				}
			}
		}
	})

	t.Run("空邮箱", func(t *testing.T) {
		page, err := f.mailbox.ListMail(ctx, "tmpnobody@example.com", domain.Page{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, page.Results)
		assert.NotNil(t, page.Results)
		assert.Zero(t, page.Count)
	})
}

func TestMailboxService_AttachmentEnrichment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "tmp")
	const owner = "tmpalice@example.com"

	withAttachments := &domain.Mail{Address: owner, Subject: "m1", MessageID: strPtr("m1")}
	withoutAttachments := &domain.Mail{Address: owner, Subject: "m2", MessageID: strPtr("m2")}
	noMessageID := &domain.Mail{Address: owner, Subject: "plain"}
	for _, m := range []*domain.Mail{withAttachments, withoutAttachments, noMessageID} {
		require.NoError(t, f.store.SaveMail(ctx, m))
	}
	require.NoError(t, f.store.SaveAttachment(ctx, &domain.Attachment{ID: "a2", MessageID: "m1", Data: `{"n":2}`}))
	require.NoError(t, f.store.SaveAttachment(ctx, &domain.Attachment{ID: "a1", MessageID: "m1", Data: `{"n":1}`}))

	page, err := f.mailbox.ListMail(ctx, owner, domain.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Results, 3)

	bySubject := make(map[string]domain.MailSummary)
	for _, r := range page.Results {
		bySubject[r.Subject] = r
	}
	assert.Equal(t, "a1", bySubject["m1"].AttachmentID)
	assert.Empty(t, bySubject["m2"].AttachmentID)
	assert.Empty(t, bySubject["plain"].AttachmentID)

	t.Run("重复查询结果一致", func(t *testing.T) {
		again, err := f.mailbox.ListMail(ctx, owner, domain.Page{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, page.Results, again.Results)
	})
}

func TestMailboxService_GetAttachment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "tmp")

	require.NoError(t, f.store.SaveMail(ctx, &domain.Mail{Address: "tmpalice@example.com", MessageID: strPtr("m1")}))
	require.NoError(t, f.store.SaveAttachment(ctx, &domain.Attachment{ID: "a1", MessageID: "m1", Data: `{"filename":"x.txt"}`}))
	require.NoError(t, f.store.SaveAttachment(ctx, &domain.Attachment{ID: "empty", MessageID: "m1"}))

	data, err := f.mailbox.GetAttachment(ctx, "tmpalice@example.com", "a1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"filename":"x.txt"}`, data)

	_, err = f.mailbox.GetAttachment(ctx, "tmpbob@example.com", "a1")
	assert.ErrorIs(t, err, domain.ErrAttachmentNotFound)

	_, err = f.mailbox.GetAttachment(ctx, "tmpalice@example.com", "missing")
	assert.ErrorIs(t, err, domain.ErrAttachmentNotFound)

	_, err = f.mailbox.GetAttachment(ctx, "tmpalice@example.com", "empty")
	assert.ErrorIs(t, err, domain.ErrAttachmentNotFound)
}
