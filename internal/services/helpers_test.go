package services

import (
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propertydesk/propertydesk/internal/access"
	"github.com/propertydesk/propertydesk/internal/auth"
	"github.com/propertydesk/propertydesk/internal/db/models"
	"github.com/propertydesk/propertydesk/internal/services/servicetest"
)

// ---------------------------------------------------------------------------
// Shared fixture
// ---------------------------------------------------------------------------

const (
	propertyID  = "property-1"
	landlordID  = "landlord-1"
	agentID     = "agent-1"
	tenantID    = "tenant-1"
	neighbourID = "tenant-2"
	inspectorID = "inspector-1"
	strangerID  = "stranger-1"
	adminID     = "admin-1"
)

var (
	fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	errStore = errors.New("connection reset by peer")

	owner     = access.Caller{ID: landlordID, Role: string(auth.RoleLandlord)}
	agent     = access.Caller{ID: agentID, Role: string(auth.RoleAgent)}
	tenant    = access.Caller{ID: tenantID, Role: string(auth.RoleTenant)}
	neighbour = access.Caller{ID: neighbourID, Role: string(auth.RoleTenant)}
	inspector = access.Caller{ID: inspectorID, Role: string(auth.RoleAgent)}
	stranger  = access.Caller{ID: strangerID, Role: string(auth.RoleTenant)}
	admin     = access.Caller{ID: adminID, Role: string(auth.RoleAdmin)}
	anonymous = access.Caller{}
)

type fixture struct {
	deps       Deps
	properties *servicetest.Properties
	users      *servicetest.Users
}

// newFixture seeds one property let by landlord-1 through agent-1 to
// tenant-1 and tenant-2, plus a user row for every caller above.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	props := servicetest.NewProperties()
	users := servicetest.NewUsers(
		&models.User{ID: landlordID, Name: "Lena Landlord", Email: "lena@example.com", Role: string(auth.RoleLandlord)},
		&models.User{ID: agentID, Name: "Arlo Agent", Email: "arlo@example.com", Role: string(auth.RoleAgent)},
		&models.User{ID: tenantID, Name: "Tess Tenant", Email: "tess@example.com", Role: string(auth.RoleTenant)},
		&models.User{ID: neighbourID, Name: "Noor Neighbour", Email: "noor@example.com", Role: string(auth.RoleTenant)},
		&models.User{ID: inspectorID, Name: "Ivo Inspector", Email: "ivo@example.com", Role: string(auth.RoleAgent)},
		&models.User{ID: strangerID, Name: "Sam Stranger", Email: "sam@example.com", Role: string(auth.RoleTenant)},
		&models.User{ID: adminID, Name: "Ada Admin", Email: "ada@example.com", Role: string(auth.RoleAdmin)},
	)
	require.NoError(t, props.Create(t.Context(), &models.Property{
		ID:         propertyID,
		LandlordID: landlordID,
		AgentID:    strPtr(agentID),
		TenantIDs:  pq.StringArray{tenantID, neighbourID},
		Title:      "Two bed flat",
		Address:    "1 High Street",
		City:       "Leeds",
		Rent:       950,
		Bedrooms:   2,
		Status:     models.PropertyLet,
		CreatedBy:  landlordID,
		CreatedAt:  fixedNow.Add(-24 * time.Hour),
		UpdatedBy:  landlordID,
		UpdatedAt:  fixedNow.Add(-24 * time.Hour),
	}))
	return &fixture{
		deps: Deps{
			Policy:     access.MustNewPolicy(),
			Properties: props,
			Users:      users,
			Now:        func() time.Time { return fixedNow },
		},
		properties: props,
		users:      users,
	}
}

// assertKind checks err is a lifecycle error of kind carrying msg. An empty
// msg skips the message check.
func assertKind(t *testing.T, err error, kind access.Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, access.KindOf(err), "error: %v", err)
	if msg != "" {
		var e *access.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, msg, e.Message)
	}
}

func ptr[T any](v T) *T { return &v }
