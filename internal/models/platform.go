package models

import "time"

// PlatformAuthMethodJWKSet marks a platform whose id_tokens are verified against a remote key set.
const PlatformAuthMethodJWKSet = "JWK_SET"

// Platform is an LMS registration trusted to launch the tool.
type Platform struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	URL                    string    `gorm:"size:255;not null;uniqueIndex:idx_platform_issuer_client" json:"url"`
	ClientID               string    `gorm:"size:255;not null;uniqueIndex:idx_platform_issuer_client" json:"client_id"`
	Name                   string    `gorm:"size:255" json:"name"`
	AuthenticationEndpoint string    `gorm:"size:512;not null" json:"authentication_endpoint"`
	AccessTokenEndpoint    string    `gorm:"size:512;not null" json:"access_token_endpoint"`
	AuthMethod             string    `gorm:"size:32;not null" json:"auth_method"`
	AuthKey                string    `gorm:"size:512;not null" json:"auth_key"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}
