package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"capmail/backend/internal/domain"
	"capmail/backend/internal/monitoring"
	"capmail/backend/internal/storage"
)

const (
	// randomNameLength 随机本地部分长度，36^13 约 2^67
	randomNameLength = 13
	nameAlphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// TokenIssuer 签发能力令牌
type TokenIssuer interface {
	Issue(claim domain.Claim) (string, error)
}

// Directory 地址目录，负责创建、解析、校验与删除地址。
type Directory struct {
	store   storage.Store
	policy  domain.AddressPolicy
	domains []string
	tokens  TokenIssuer
	logger  *zap.Logger
	metrics *monitoring.Metrics
	now     func() time.Time
}

// NewDirectory 创建地址目录
func NewDirectory(store storage.Store, policy domain.AddressPolicy, domains []string, tokens TokenIssuer, logger *zap.Logger, metrics *monitoring.Metrics) *Directory {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			normalized = append(normalized, d)
		}
	}

	return &Directory{
		store:   store,
		policy:  policy,
		domains: normalized,
		tokens:  tokens,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Policy 返回地址策略
func (d *Directory) Policy() domain.AddressPolicy {
	return d.policy
}

// Domains 返回允许的域名列表
func (d *Directory) Domains() []string {
	return append([]string(nil), d.domains...)
}

// Provisioned 新创建的地址
type Provisioned struct {
	Address string // 展示地址
	ID      int64
	Token   string
}

// Provision 创建新地址并签发令牌。
//
// name 为空时生成随机本地部分；domainName 为空或不在允许列表中时随机选择域名。
// 名字已被占用时返回 ErrNameTaken，调用方应换一个名字重试。
func (d *Directory) Provision(ctx context.Context, name, domainName string) (*Provisioned, error) {
	localPart, err := d.resolveLocalPart(name)
	if err != nil {
		return nil, err
	}

	selected, err := d.pickDomain(domainName)
	if err != nil {
		return nil, err
	}

	bare := localPart + "@" + selected
	if err := d.store.CreateAddress(ctx, bare, d.now().UTC()); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			d.metrics.RecordNameConflict()
			return nil, domain.ErrNameTaken
		}
		return nil, fmt.Errorf("create address: %w", err)
	}

	id, err := d.ResolveID(ctx, bare)
	if err != nil {
		return nil, fmt.Errorf("resolve new address: %w", err)
	}

	display := d.policy.Display(bare)
	token, err := d.tokens.Issue(domain.Claim{Address: display, AddressID: id})
	if err != nil {
		return nil, err
	}

	d.metrics.RecordAddressProvisioned()
	d.logger.Info("address provisioned", zap.String("address", display), zap.Int64("address_id", id))

	return &Provisioned{Address: display, ID: id, Token: token}, nil
}

// ResolveID 按目录名精确查找 ID
func (d *Directory) ResolveID(ctx context.Context, name string) (int64, error) {
	addr, err := d.store.GetAddressByName(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, domain.ErrAddressNotFound
		}
		return 0, err
	}
	return addr.ID, nil
}

// ValidateClaim 将令牌声明与当前目录状态对账。
//
//   - 声明带 address_id：该行必须存在，且其展示名等于声明地址
//   - 无 address_id 且地址符合托管前缀：去掉前缀后的名字必须存在
//   - 其他地址视为未托管的外部地址，直接接受
//
// 不满足时返回 ErrStaleAddress，需要重新创建地址。
func (d *Directory) ValidateClaim(ctx context.Context, claim domain.Claim) (domain.ValidatedAddress, error) {
	if claim.HasAddressID() {
		addr, err := d.store.GetAddressByID(ctx, claim.AddressID)
		if err != nil {
			return domain.ValidatedAddress{}, d.staleOr(err, claim)
		}
		if d.policy.Display(addr.Name) != claim.Address {
			return domain.ValidatedAddress{}, d.stale(claim)
		}
		return domain.ValidatedAddress{Address: claim.Address, Name: addr.Name, ID: addr.ID, Managed: true}, nil
	}

	if d.policy.IsManaged(claim.Address) {
		addr, err := d.store.GetAddressByName(ctx, d.policy.BareName(claim.Address))
		if err != nil {
			return domain.ValidatedAddress{}, d.staleOr(err, claim)
		}
		return domain.ValidatedAddress{Address: claim.Address, Name: addr.Name, ID: addr.ID, Managed: true}, nil
	}

	return domain.ValidatedAddress{Address: claim.Address}, nil
}

func (d *Directory) staleOr(err error, claim domain.Claim) error {
	if errors.Is(err, storage.ErrNotFound) {
		return d.stale(claim)
	}
	return fmt.Errorf("validate claim: %w", err)
}

func (d *Directory) stale(claim domain.Claim) error {
	d.metrics.RecordStaleClaim()
	d.logger.Debug("stale address claim",
		zap.String("address", claim.Address),
		zap.Int64("address_id", claim.AddressID),
	)
	return domain.ErrStaleAddress
}

// Touch 刷新活跃时间，失败只记录日志
func (d *Directory) Touch(ctx context.Context, addr domain.ValidatedAddress) {
	if !addr.Managed {
		return
	}
	if err := d.store.TouchAddress(ctx, addr.Name, d.now().UTC()); err != nil {
		d.logger.Warn("failed to touch address", zap.String("address", addr.Address), zap.Error(err))
	}
}

// Release 用户自助删除地址及其全部邮件，返回删除的邮件数
func (d *Directory) Release(ctx context.Context, addr domain.ValidatedAddress) (int64, error) {
	var (
		deleted int64
		err     error
	)
	if addr.Managed {
		deleted, err = d.store.DeleteAddressCascade(ctx, addr.ID, addr.Address)
	} else {
		deleted, err = d.store.DeleteMailsByAddress(ctx, addr.Address)
	}
	if err != nil {
		return 0, fmt.Errorf("delete address: %w", err)
	}

	d.metrics.RecordAddressDeleted("self", deleted)
	d.logger.Info("address released", zap.String("address", addr.Address), zap.Int64("mails", deleted))
	return deleted, nil
}

func (d *Directory) resolveLocalPart(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return randomString(randomNameLength)
	}
	return domain.NormalizeLocalPart(name)
}

func (d *Directory) pickDomain(requested string) (string, error) {
	if len(d.domains) == 0 {
		return "", errors.New("no domains configured")
	}

	requested = strings.ToLower(strings.TrimSpace(requested))
	for _, allowed := range d.domains {
		if allowed == requested {
			return allowed, nil
		}
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(d.domains))))
	if err != nil {
		return "", err
	}
	return d.domains[n.Int64()], nil
}

func randomString(length int) (string, error) {
	alphabetSize := big.NewInt(int64(len(nameAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		buf[i] = nameAlphabet[n.Int64()]
	}
	return string(buf), nil
}
