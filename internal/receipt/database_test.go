package receipt

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"
)

func fullReceipt() Receipt {
	loc := time.FixedZone("CLT", -3*60*60)
	tax := decimal.RequireFromString("4149.66")
	rate := decimal.RequireFromString("0.19")
	purchased := time.Date(2024, 1, 15, 13, 45, 12, 123456789, loc)
	return Receipt{
		ID:                  "8b0b5c2e-0d5a-4f5e-9a57-6d8f6e7c1a11",
		Title:               "Jumbo - Compra semanal",
		MerchantName:        "Jumbo",
		Description:         "Café Juan",
		PurchaseDate:        purchased,
		CaptureDate:         purchased.Add(time.Hour),
		Amount:              decimal.RequireFromString("25990.50"),
		CurrencyCode:        "CLP",
		TaxAmount:           &tax,
		TaxRate:             &rate,
		Category:            CategoryGroceries,
		Keywords:            []string{"leche", "pan"},
		Tags:                []string{"semanal"},
		Metadata:            map[string]string{"rut": "76.123.456-7"},
		LocationDescription: "Av. Kennedy 9001",
		Location:            &Coordinate{Latitude: -33.39, Longitude: -70.54},
		Attachment: Attachment{
			Path:          "attachments/8b0b-boleta.jpg",
			ThumbnailPath: "thumbnails/8b0b-boleta.jpg",
			MimeType:      "image/jpeg",
		},
		CreatedAt: purchased.Add(2 * time.Hour),
		UpdatedAt: purchased.Add(3 * time.Hour),
	}
}

// collectionStoreBehaviour is shared by every CollectionStore implementation
func collectionStoreBehaviour(open func(dir string) (CollectionStore, error)) {
	var (
		dir   string
		store CollectionStore
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		var err error
		store, err = open(dir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
	})

	When("nothing was persisted", func() {
		It("loads an empty collection", func() {
			receipts, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).NotTo(BeNil())
			Expect(receipts).To(BeEmpty())
		})
	})

	When("a collection was persisted", func() {
		var original []Receipt

		BeforeEach(func() {
			second := sampleReceipt("second", CategoryDining, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
			original = []Receipt{fullReceipt(), second}
			Expect(store.Persist(original)).To(Succeed())
		})

		It("loads a collection equal in all fields", func() {
			loaded, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeComparableTo(original, receiptComparers...))
		})

		It("keeps the exact decimal digits", func() {
			loaded, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded[0].Amount.String()).To(Equal("25990.5"))
			Expect(loaded[0].TaxAmount.String()).To(Equal("4149.66"))
		})

		It("replaces the collection on the next persist", func() {
			Expect(store.Persist(original[1:])).To(Succeed())

			loaded, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(HaveLen(1))
			Expect(loaded[0].ID).To(Equal("second"))
		})

		It("survives reopening", func() {
			Expect(store.Close()).To(Succeed())

			var err error
			store, err = open(dir)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeComparableTo(original, receiptComparers...))
		})
	})

	When("an empty collection is persisted", func() {
		It("loads an empty collection", func() {
			Expect(store.Persist(nil)).To(Succeed())

			receipts, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(BeEmpty())
		})
	})
}

var _ = Describe("BoltDB", func() {
	collectionStoreBehaviour(func(dir string) (CollectionStore, error) {
		return NewBoltDB(filepath.Join(dir, "test.db"))
	})

	When("the stored collection is corrupt", func() {
		var db *BoltDB

		BeforeEach(func() {
			var err error
			db, err = NewBoltDB(filepath.Join(GinkgoT().TempDir(), "corrupt.db"))
			Expect(err).NotTo(HaveOccurred())

			err = db.db.Update(func(tx *bbolt.Tx) error {
				return tx.Bucket([]byte(bucketName)).Put([]byte(collectionKey), []byte("{not json"))
			})
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			db.Close()
		})

		It("returns ErrStorageCorrupt", func() {
			receipts, err := db.Load()
			Expect(receipts).To(BeNil())
			Expect(errors.Is(err, ErrStorageCorrupt)).To(BeTrue())
		})
	})
})

var _ = Describe("SQLiteDB", func() {
	collectionStoreBehaviour(func(dir string) (CollectionStore, error) {
		return NewSQLiteDB(filepath.Join(dir, "nested", "test.sqlite"))
	})

	When("the stored collection is corrupt", func() {
		var db *SQLiteDB

		BeforeEach(func() {
			var err error
			db, err = NewSQLiteDB(filepath.Join(GinkgoT().TempDir(), "corrupt.sqlite"))
			Expect(err).NotTo(HaveOccurred())

			_, err = db.db.Exec(`INSERT INTO collection_snapshots (id, payload, record_count, updated_at) VALUES (1, 'oops', 0, '')`)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			db.Close()
		})

		It("returns ErrStorageCorrupt", func() {
			_, err := db.Load()
			Expect(errors.Is(err, ErrStorageCorrupt)).To(BeTrue())
		})
	})

	It("records the row count", func() {
		db, err := NewSQLiteDB(filepath.Join(GinkgoT().TempDir(), "count.sqlite"))
		Expect(err).NotTo(HaveOccurred())
		defer db.Close()

		Expect(db.Persist([]Receipt{fullReceipt()})).To(Succeed())

		var count int
		Expect(db.db.QueryRow(`SELECT record_count FROM collection_snapshots WHERE id = 1`).Scan(&count)).To(Succeed())
		Expect(count).To(Equal(1))
	})
})
