package crm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRolePermissions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role     Role
		canRead  bool
		canWrite bool
	}{
		{RoleOwner, true, true},
		{RoleAdmin, true, true},
		{RoleMember, true, true},
		{RoleViewer, true, false},
		{Role("guest"), false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.canRead, tt.role.CanRead())
			assert.Equal(t, tt.canWrite, tt.role.CanWrite())
		})
	}
}
