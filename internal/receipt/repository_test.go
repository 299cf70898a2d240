package receipt

import (
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("Repository", func() {
	var (
		store   *mockStore
		storage *mockStorage
		repo    *Repository
		day     time.Time
	)

	BeforeEach(func() {
		store = &mockStore{}
		storage = newMockStorage()
		repo = NewRepository(store, storage)
		day = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		repo.Close()
	})

	Describe("Load", func() {
		var err error

		JustBeforeEach(func() {
			err = repo.Load()
		})

		When("the store holds receipts", func() {
			BeforeEach(func() {
				store.receipts = []Receipt{sampleReceipt("a", CategoryDining, day)}
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should expose the stored receipts", func() {
				Expect(repo.List()).To(HaveLen(1))
				Expect(repo.Snapshot().Receipts).To(HaveLen(1))
			})
		})

		When("the store is corrupt", func() {
			BeforeEach(func() {
				store.receipts = []Receipt{sampleReceipt("a", CategoryDining, day)}
				store.loadErr = ErrStorageCorrupt
			})

			It("returns the error", func() {
				Expect(errors.Is(err, ErrStorageCorrupt)).To(BeTrue())
			})

			It("should start empty", func() {
				Expect(repo.List()).To(BeEmpty())
			})
		})
	})

	Describe("Add", func() {
		It("appends in insertion order and persists", func() {
			repo.Add(sampleReceipt("a", CategoryDining, day))
			repo.Add(sampleReceipt("b", CategoryHealth, day))

			ids := []string{}
			for _, r := range repo.List() {
				ids = append(ids, r.ID)
			}
			Expect(ids).To(Equal([]string{"a", "b"}))
			Expect(store.stored()).To(HaveLen(2))
		})

		It("keeps the in-memory state when persisting fails", func() {
			store.persistErr = errors.New("disk full")
			repo.Add(sampleReceipt("a", CategoryDining, day))

			Expect(repo.List()).To(HaveLen(1))
			Expect(store.persisted).To(Equal(1))
		})

		It("stores a copy of the receipt", func() {
			r := sampleReceipt("a", CategoryDining, day)
			repo.Add(r)
			r.Keywords[0] = "changed"

			got, ok := repo.Get("a")
			Expect(ok).To(BeTrue())
			Expect(got.Keywords).To(Equal([]string{"pan"}))
		})
	})

	Describe("Update", func() {
		BeforeEach(func() {
			repo.Add(sampleReceipt("a", CategoryDining, day))
		})

		It("replaces the receipt with the same ID", func() {
			r, _ := repo.Get("a")
			r.Title = "Nuevo"
			r.Amount = decimal.NewFromInt(5000)

			Expect(repo.Update(r)).To(BeTrue())

			got, _ := repo.Get("a")
			Expect(got.Title).To(Equal("Nuevo"))
			Expect(got.Amount.Equal(decimal.NewFromInt(5000))).To(BeTrue())
			Expect(store.stored()[0].Title).To(Equal("Nuevo"))
		})

		It("keeps the attachment and creation time", func() {
			r, _ := repo.Get("a")
			original := r.Attachment
			r.Attachment = Attachment{Path: "elsewhere"}
			r.CreatedAt = day.Add(48 * time.Hour)

			repo.Update(r)

			got, _ := repo.Get("a")
			Expect(got.Attachment).To(Equal(original))
			Expect(got.CreatedAt).To(Equal(day))
		})

		It("does nothing for an unknown ID", func() {
			persisted := store.persisted
			version := repo.Snapshot().Version

			Expect(repo.Update(sampleReceipt("missing", CategoryOther, day))).To(BeFalse())
			Expect(repo.List()).To(HaveLen(1))
			Expect(store.persisted).To(Equal(persisted))
			Expect(repo.Snapshot().Version).To(Equal(version))
		})
	})

	Describe("Delete", func() {
		BeforeEach(func() {
			r := sampleReceipt("a", CategoryDining, day)
			r.Attachment.ThumbnailPath = "thumbnails/a-doc.jpg"
			storage.files[r.Attachment.Path] = []byte("doc")
			storage.files[r.Attachment.ThumbnailPath] = []byte("thumb")
			repo.Add(r)
			repo.Add(sampleReceipt("b", CategoryHealth, day))
		})

		It("removes the receipt and its blobs", func() {
			Expect(repo.Delete("a")).To(BeTrue())

			_, ok := repo.Get("a")
			Expect(ok).To(BeFalse())
			Expect(storage.keys()).To(BeEmpty())
			Expect(store.stored()).To(HaveLen(1))
		})

		It("still removes the receipt when blob deletion fails", func() {
			storage.deleteErr = errors.New("permission denied")

			Expect(repo.Delete("a")).To(BeTrue())
			Expect(repo.List()).To(HaveLen(1))
		})

		It("reports unknown IDs", func() {
			Expect(repo.Delete("missing")).To(BeFalse())
			Expect(repo.List()).To(HaveLen(2))
		})

		It("serves readers while attachment blobs are being deleted", func() {
			gated := &gatedStorage{
				mockStorage: storage,
				entered:     make(chan struct{}, 1),
				release:     make(chan struct{}),
			}
			gatedRepo := NewRepository(store, gated)
			defer gatedRepo.Close()
			Expect(gatedRepo.Load()).To(Succeed())

			deleted := make(chan bool, 1)
			go func() {
				defer GinkgoRecover()
				deleted <- gatedRepo.Delete("a")
			}()
			Eventually(gated.entered).Should(Receive())

			listed := make(chan []Receipt, 1)
			go func() {
				defer GinkgoRecover()
				listed <- gatedRepo.List()
			}()
			var receipts []Receipt
			Eventually(listed).Should(Receive(&receipts))
			Expect(receipts).To(HaveLen(1))
			Expect(receipts[0].ID).To(Equal("b"))
			Consistently(deleted, 50*time.Millisecond).ShouldNot(Receive())

			close(gated.release)
			Eventually(deleted).Should(Receive(BeTrue()))
			Expect(storage.keys()).To(BeEmpty())
		})
	})

	Describe("ByCategory", func() {
		It("returns only receipts in the category", func() {
			repo.Add(sampleReceipt("a", CategoryDining, day))
			repo.Add(sampleReceipt("b", CategoryHealth, day))
			repo.Add(sampleReceipt("c", CategoryDining, day))

			dining := repo.ByCategory(CategoryDining)
			Expect(dining).To(HaveLen(2))
			Expect(dining[0].ID).To(Equal("a"))
			Expect(dining[1].ID).To(Equal("c"))
			Expect(repo.ByCategory(CategoryTravel)).To(BeEmpty())
		})
	})

	Describe("Subscribe", func() {
		It("delivers the current snapshot immediately", func() {
			repo.Add(sampleReceipt("a", CategoryDining, day))

			updates := repo.Subscribe()
			var snap *Snapshot
			Eventually(updates).Should(Receive(&snap))
			Expect(snap.Receipts).To(HaveLen(1))
		})

		It("replaces an unread snapshot with the latest one", func() {
			updates := repo.Subscribe()

			repo.Add(sampleReceipt("a", CategoryDining, day))
			repo.Add(sampleReceipt("b", CategoryDining, day))
			repo.Add(sampleReceipt("c", CategoryDining, day))

			var snap *Snapshot
			Expect(updates).To(Receive(&snap))
			Expect(snap.Receipts).To(HaveLen(3))
			Expect(updates).NotTo(Receive())
		})

		It("publishes snapshots in mutation order", func() {
			updates := repo.Subscribe()
			<-updates

			var (
				wg       sync.WaitGroup
				versions []uint64
			)
			wg.Add(1)
			go func() {
				defer wg.Done()
				for snap := range updates {
					versions = append(versions, snap.Version)
				}
			}()

			for i := 0; i < 50; i++ {
				repo.Add(sampleReceipt("x", CategoryOther, day))
			}
			repo.Close()
			wg.Wait()

			Expect(versions).NotTo(BeEmpty())
			for i := 1; i < len(versions); i++ {
				Expect(versions[i]).To(BeNumerically(">", versions[i-1]))
			}
			Expect(versions[len(versions)-1]).To(Equal(repo.Snapshot().Version))
		})

		It("hands out snapshots isolated from later mutations", func() {
			repo.Add(sampleReceipt("a", CategoryDining, day))
			snap := repo.Snapshot()

			r, _ := repo.Get("a")
			r.Title = "changed"
			repo.Update(r)

			Expect(snap.Receipts[0].Title).To(Equal("Receipt a"))
		})

		It("closes subscriber channels on Close", func() {
			updates := repo.Subscribe()
			<-updates
			repo.Close()

			Eventually(updates).Should(BeClosed())
			Expect(repo.Subscribe()).To(BeClosed())
		})
	})
})
