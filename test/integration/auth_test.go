// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	authredis "github.com/holomush/authd/internal/auth/redis"
	"github.com/holomush/authd/internal/rpc"
)

const day = 24 * time.Hour

var _ = Describe("Token authentication", func() {
	var (
		ctx    context.Context
		client *rpc.Client
	)

	BeforeEach(func() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
		DeferCleanup(cancel)
		client = dial(env.listener.Addr())
	})

	It("reports SERVING through the health service", func() {
		st, err := client.Check(ctx, rpc.ServiceName)
		Expect(err).NotTo(HaveOccurred())
		Expect(st).To(Equal(healthpb.HealthCheckResponse_SERVING))
	})

	It("issues a token that authenticates to the same user", func() {
		id := provision("alice", "correct-pw")

		issued, err := client.IssueToken(ctx, "alice", "correct-pw")
		Expect(err).NotTo(HaveOccurred())
		Expect(issued.Status).To(Equal(rpc.StatusSuccess))
		Expect(issued.UserID).To(Equal(id))
		Expect(issued.Token).To(HaveLen(36))

		authed, err := client.Authenticate(ctx, issued.Token)
		Expect(err).NotTo(HaveOccurred())
		Expect(authed.Status).To(Equal(rpc.StatusSuccess))
		Expect(authed.UserID).To(Equal(id))

		Expect(env.redis.TTL(authredis.DefaultKeyPrefix + issued.Token)).To(Equal(3 * day))
	})

	It("fails a wrong password without creating a session", func() {
		provision("bob", "right")
		before := len(env.redis.Keys())

		resp, err := client.IssueToken(ctx, "bob", "wrong")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Status).To(Equal(rpc.StatusFail))
		Expect(resp.Token).To(BeEmpty())
		Expect(resp.UserID).To(BeZero())
		Expect(env.redis.Keys()).To(HaveLen(before))
	})

	It("fails an unknown username with the same response shape", func() {
		provision("carol", "pw")

		wrong, err := client.IssueToken(ctx, "carol", "nope")
		Expect(err).NotTo(HaveOccurred())
		unknown, err := client.IssueToken(ctx, "nobody", "nope")
		Expect(err).NotTo(HaveOccurred())

		Expect(*unknown).To(Equal(*wrong))
	})

	It("fails a token that was never issued", func() {
		resp, err := client.Authenticate(ctx, "00000000-0000-4000-8000-000000000000")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Status).To(Equal(rpc.StatusFail))
		Expect(resp.UserID).To(BeZero())
	})

	It("slides the expiry on every authenticate and lapses after a quiet TTL", func() {
		id := provision("dave", "pw")
		issued, err := client.IssueToken(ctx, "dave", "pw")
		Expect(err).NotTo(HaveOccurred())

		for range 2 {
			env.redis.FastForward(2 * day)
			resp, err := client.Authenticate(ctx, issued.Token)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Status).To(Equal(rpc.StatusSuccess))
			Expect(resp.UserID).To(Equal(id))
		}

		env.redis.FastForward(3*day + time.Second)
		resp, err := client.Authenticate(ctx, issued.Token)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Status).To(Equal(rpc.StatusFail))
	})

	It("issues distinct tokens to repeated logins that stay valid together", func() {
		provision("erin", "pw")

		first, err := client.IssueToken(ctx, "erin", "pw")
		Expect(err).NotTo(HaveOccurred())
		second, err := client.IssueToken(ctx, "erin", "pw")
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Token).NotTo(Equal(second.Token))

		for _, token := range []string{first.Token, second.Token} {
			resp, err := client.Authenticate(ctx, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Status).To(Equal(rpc.StatusSuccess))
		}
	})

	It("serves concurrent clients on every bound address", func() {
		id := provision("frank", "pw")

		var wg sync.WaitGroup
		for _, addr := range env.listener.Addrs() {
			c := dial(addr)
			for range 4 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					issued, err := c.IssueToken(ctx, "frank", "pw")
					Expect(err).NotTo(HaveOccurred())
					Expect(issued.Status).To(Equal(rpc.StatusSuccess))
					authed, err := c.Authenticate(ctx, issued.Token)
					Expect(err).NotTo(HaveOccurred())
					Expect(authed.UserID).To(Equal(id))
				}()
			}
		}
		wg.Wait()
	})

	It("reports Unavailable without detail when the cache fails", func() {
		provision("grace", "pw")
		env.redis.SetError("ERR backend failure")
		DeferCleanup(func() { env.redis.SetError("") })

		_, err := client.IssueToken(ctx, "grace", "pw")
		Expect(status.Code(err)).To(Equal(codes.Unavailable))
		Expect(status.Convert(err).Message()).NotTo(ContainSubstring("backend failure"))

		_, err = client.Authenticate(ctx, "any-token")
		Expect(status.Code(err)).To(Equal(codes.Unavailable))
	})
})
