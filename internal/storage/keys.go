package storage

import (
	"github.com/google/uuid"
)

// ProfilePhotoKey returns a fresh key for a profile photo.
func ProfilePhotoKey(profileID uuid.UUID, ext string) string {
	return "profiles/" + profileID.String() + "/" + uuid.NewString() + ext
}

// TenantLogoKey returns the key of a tenant's logo.
func TenantLogoKey(tenantID uuid.UUID, ext string) string {
	return "tenants/" + tenantID.String() + "/logo" + ext
}
