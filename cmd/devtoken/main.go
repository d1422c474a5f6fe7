// foodshare - surplus food donation service
// Copyright (C) 2025  foodshare contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

// Command devtoken prints a bearer token accepted by the server's jwt auth
// provider.
//
//	devtoken -uid donor-1 -contact donor@example.com
//	devtoken -uid admin-1 -roles admin -ttl 24h
//	devtoken -new-key
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jredh-dev/foodshare/config"
	"github.com/jredh-dev/foodshare/internal/identity"
)

func main() {
	uid := flag.String("uid", "", "user id (required)")
	contact := flag.String("contact", "", "email or phone number")
	roles := flag.String("roles", "", "comma-separated roles, e.g. admin")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	key := flag.String("key", envOr("JWT_SIGNING_KEY", config.DevSigningKey), "HS256 signing key")
	issuer := flag.String("issuer", envOr("JWT_ISSUER", "foodshare"), "token issuer")
	newKey := flag.Bool("new-key", false, "print a fresh random signing key and exit")
	flag.Parse()

	if *newKey {
		k, err := identity.GenerateSigningKey()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(k)
		return
	}

	if *uid == "" {
		fmt.Fprintln(os.Stderr, "devtoken: -uid is required")
		flag.Usage()
		os.Exit(2)
	}

	var roleList []string
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roleList = append(roleList, r)
		}
	}

	token, err := identity.NewJWTVerifier(*key, *issuer).Issue(*uid, *contact, roleList, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
