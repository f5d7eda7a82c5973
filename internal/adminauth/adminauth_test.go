package adminauth_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/skyforge-astro/boom/internal/adminauth"
)

var _ = Describe("Authenticator", func() {
	It("issues a token on a correct passphrase and verifies it", func() {
		a, err := adminauth.New("correct-horse-battery-staple")
		Expect(err).NotTo(HaveOccurred())

		token, err := a.Login("correct-horse-battery-staple")
		Expect(err).NotTo(HaveOccurred())
		Expect(token).NotTo(BeEmpty())
		Expect(a.Verify(token)).To(Succeed())
	})

	It("rejects an incorrect passphrase", func() {
		a, err := adminauth.New("correct-horse-battery-staple")
		Expect(err).NotTo(HaveOccurred())

		_, err = a.Login("wrong-passphrase")
		Expect(err).To(MatchError(adminauth.ErrBadCredentials))
	})

	It("rejects a garbage token", func() {
		a, err := adminauth.New("correct-horse-battery-staple")
		Expect(err).NotTo(HaveOccurred())

		Expect(a.Verify("not-a-real-token")).To(MatchError(adminauth.ErrBadToken))
	})

	It("rejects a token signed by a different authenticator instance", func() {
		a, err := adminauth.New("correct-horse-battery-staple")
		Expect(err).NotTo(HaveOccurred())
		other, err := adminauth.New("correct-horse-battery-staple")
		Expect(err).NotTo(HaveOccurred())

		token, err := a.Login("correct-horse-battery-staple")
		Expect(err).NotTo(HaveOccurred())
		Expect(other.Verify(token)).To(MatchError(adminauth.ErrBadToken))
	})
})
