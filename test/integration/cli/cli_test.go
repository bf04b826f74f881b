// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package cli_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

const seedFile = `users:
  - email: admin@example.com
    password: correct horse battery staple
    role: ADMIN
    approved: true
  - email: pending@example.com
    password: correct horse battery staple
    firstName: Pat
`

var _ = Describe("warden CLI", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		resetDatabase(ctx, env.pool)
	})

	Describe("migrate", func() {
		It("applies and reports the schema", func() {
			output, err := warden(ctx, "", "migrate", "up")
			Expect(err).NotTo(HaveOccurred(), output)
			Expect(output).To(ContainSubstring("Migrations completed successfully"))

			output, err = warden(ctx, "", "migrate", "status")
			Expect(err).NotTo(HaveOccurred(), output)
			Expect(output).To(ContainSubstring("create_sessions"))

			var exists bool
			err = env.pool.QueryRow(ctx, "SELECT to_regclass('public.users') IS NOT NULL").Scan(&exists)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())
		})

		It("rolls everything back with --all", func() {
			output, err := warden(ctx, "", "migrate", "up")
			Expect(err).NotTo(HaveOccurred(), output)

			output, err = warden(ctx, "", "migrate", "down", "--all")
			Expect(err).NotTo(HaveOccurred(), output)

			var exists bool
			err = env.pool.QueryRow(ctx, "SELECT to_regclass('public.users') IS NOT NULL").Scan(&exists)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})
	})

	Describe("seed", func() {
		var path string

		BeforeEach(func() {
			path = filepath.Join(GinkgoT().TempDir(), "users.yaml")
			Expect(os.WriteFile(path, []byte(seedFile), 0o600)).To(Succeed())
			output, err := warden(ctx, "", "migrate", "up")
			Expect(err).NotTo(HaveOccurred(), output)
		})

		It("creates users once and skips them afterwards", func() {
			output, err := warden(ctx, "", "seed", path)
			Expect(err).NotTo(HaveOccurred(), output)
			Expect(output).To(ContainSubstring("Seeded 2 user(s), skipped 0 existing"))

			output, err = warden(ctx, "", "seed", path)
			Expect(err).NotTo(HaveOccurred(), output)
			Expect(output).To(ContainSubstring("Seeded 0 user(s), skipped 2 existing"))

			var role string
			var approved bool
			err = env.pool.QueryRow(ctx,
				"SELECT role, is_approved FROM users WHERE email = $1", "admin@example.com",
			).Scan(&role, &approved)
			Expect(err).NotTo(HaveOccurred())
			Expect(role).To(Equal("ADMIN"))
			Expect(approved).To(BeTrue())
		})
	})

	Describe("user", func() {
		BeforeEach(func() {
			output, err := warden(ctx, "", "migrate", "up")
			Expect(err).NotTo(HaveOccurred(), output)
		})

		It("creates a user from stdin and approves it", func() {
			output, err := warden(ctx, "correct horse battery staple\n", "user", "create", "ops@example.com", "--role", "admin")
			Expect(err).NotTo(HaveOccurred(), output)
			Expect(output).To(ContainSubstring("Created ADMIN user ops@example.com"))

			output, err = warden(ctx, "", "user", "approve", "ops@example.com")
			Expect(err).NotTo(HaveOccurred(), output)

			var approved bool
			var digest string
			err = env.pool.QueryRow(ctx,
				"SELECT is_approved, password_hash FROM users WHERE email = $1", "ops@example.com",
			).Scan(&approved, &digest)
			Expect(err).NotTo(HaveOccurred())
			Expect(approved).To(BeTrue())
			Expect(digest).NotTo(ContainSubstring("correct horse"))
		})

		It("fails without DATABASE_URL", func() {
			cmd := []string{"user", "approve", "ops@example.com", "--database-url", ""}
			output, err := warden(ctx, "", cmd...)
			Expect(err).To(HaveOccurred())
			Expect(output).To(ContainSubstring("database.url"))
		})
	})
})
