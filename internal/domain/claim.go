package domain

// Claim 能力令牌中携带的声明。
//
// Address 是带前缀的完整展示地址；AddressID 小于等于 0 表示令牌未绑定目录行。
// 声明只证明持有者曾被签发过该地址，使用前必须经过目录校验。
type Claim struct {
	Address   string `json:"address"`
	AddressID int64  `json:"address_id,omitempty"`
}

// HasAddressID 声明是否绑定了目录行
func (c Claim) HasAddressID() bool {
	return c.AddressID > 0
}

// ValidatedAddress 经过目录校验的地址
type ValidatedAddress struct {
	Address string // 展示地址，即邮件表中的 address 列
	Name    string // 目录名；未托管地址为空
	ID      int64  // 目录行 ID；未托管地址为 0
	Managed bool   // 是否有对应的目录行
}
