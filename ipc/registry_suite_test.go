package ipc_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/aws-greengrass-lite/corebus/ipc"
)

func TestIPCRegistrySuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ipc registry suite")
}

func seededRand(seed byte) func([]byte) error {
	counter := seed
	return func(b []byte) error {
		for i := range b {
			b[i] = counter
			counter++
		}
		return nil
	}
}

var _ = Describe("Registry", func() {
	var reg *ipc.Registry

	BeforeEach(func() {
		reg = ipc.New(4, seededRand(1))
	})

	Describe("Register", func() {
		It("is idempotent for the same name", func() {
			h1, tok1, err := reg.Register("com.example.a")
			Expect(err).NotTo(HaveOccurred())

			h2, tok2, err := reg.Register("com.example.a")
			Expect(err).NotTo(HaveOccurred())

			Expect(h2).To(Equal(h1))
			Expect(tok2).To(Equal(tok1))
			Expect(reg.Len()).To(Equal(1))
		})

		It("assigns a distinct handle to every new name", func() {
			h1, _, err := reg.Register("com.example.a")
			Expect(err).NotTo(HaveOccurred())
			h2, _, err := reg.Register("com.example.b")
			Expect(err).NotTo(HaveOccurred())

			Expect(h1).NotTo(Equal(h2))
			Expect(h1).NotTo(Equal(ipc.Unauthenticated))
			Expect(h2).NotTo(Equal(ipc.Unauthenticated))
		})

		It("rejects registration once the table is full", func() {
			for i := 0; i < 4; i++ {
				_, _, err := reg.Register(string(rune('a' + i)))
				Expect(err).NotTo(HaveOccurred())
			}
			_, _, err := reg.Register("one-too-many")
			Expect(err).To(MatchError(ipc.ErrCapacityExceeded))
		})

		It("still allows re-registering an existing name once full", func() {
			for i := 0; i < 4; i++ {
				_, _, err := reg.Register(string(rune('a' + i)))
				Expect(err).NotTo(HaveOccurred())
			}
			_, _, err := reg.Register("a")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("LookupHandle", func() {
		It("resolves a token issued by Register", func() {
			h, tok, err := reg.Register("com.example.a")
			Expect(err).NotTo(HaveOccurred())

			got, err := reg.LookupHandle(tok)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(h))
		})

		It("rejects a token that was never issued", func() {
			_, err := reg.LookupHandle(ipc.SVCUID{0xff, 0xff, 0xff})
			Expect(err).To(MatchError(ipc.ErrNotAuthenticated))
		})
	})

	Describe("NameOf", func() {
		It("remains stable for a handle after later registrations", func() {
			h, _, err := reg.Register("com.example.a")
			Expect(err).NotTo(HaveOccurred())

			_, _, err = reg.Register("com.example.b")
			Expect(err).NotTo(HaveOccurred())

			name, ok := reg.NameOf(h)
			Expect(ok).To(BeTrue())
			Expect(name).To(Equal("com.example.a"))
		})

		It("reports not-found for an unissued handle", func() {
			_, ok := reg.NameOf(ipc.Handle(99))
			Expect(ok).To(BeFalse())
		})
	})
})

var _ = Describe("Authenticator", func() {
	It("denies a claimed name the validator rejects", func() {
		reg := ipc.New(4, seededRand(7))
		deny := ipc.NameValidatorFunc(func(pid int, name string) (bool, error) { return false, nil })
		auth := ipc.NewAuthenticator(reg, deny)

		_, _, err := auth.Authenticate(42, "com.example.denied")
		Expect(err).To(HaveOccurred())
		Expect(reg.Len()).To(Equal(0))
	})

	It("registers the component and resolves its token on a validated claim", func() {
		reg := ipc.New(4, seededRand(9))
		auth := ipc.NewAuthenticator(reg, ipc.AllowAll)

		h, tok, err := auth.Authenticate(123, "com.example.allowed")
		Expect(err).NotTo(HaveOccurred())
		Expect(h).NotTo(Equal(ipc.Unauthenticated))

		got, err := reg.LookupHandle(tok)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(h))
	})
})
