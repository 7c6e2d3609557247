// Package main mints bearer tokens signed with PD_JWT_SECRET for local
// development and smoke tests. The server only validates tokens; users are
// provisioned from the claims on first use when auth.auto_provision is on.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/propertydesk/propertydesk/internal/auth"
)

func main() {
	var (
		id       auth.Identity
		ttl      time.Duration
		issuer   string
		memberID string
	)
	flag.StringVar(&id.UserID, "sub", "", "user id (required)")
	flag.StringVar(&id.Email, "email", "", "email claim")
	flag.StringVar(&id.Name, "name", "", "display name claim")
	flag.StringVar(&id.Role, "role", string(auth.RoleTenant), "tenant, landlord, agent or admin")
	flag.StringVar(&memberID, "member", "", "agency member id claim")
	flag.StringVar(&issuer, "issuer", "", "issuer claim; must match auth.issuer on the server")
	flag.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if id.UserID == "" {
		log.Fatal("-sub is required")
	}
	id.Role = auth.NormalizeRole(id.Role)
	if err := auth.ValidateRole(id.Role); err != nil {
		log.Fatal(err)
	}
	id.MemberID = memberID
	if err := auth.ValidateJWTSecret(); err != nil {
		log.Fatal(err)
	}
	if issuer != "" {
		auth.SetIssuer(issuer)
	}

	token, err := auth.GenerateJWT(id, ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
