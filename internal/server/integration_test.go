package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/shopspring/decimal"

	"github.com/zombor/ahorro/internal/analytics"
	"github.com/zombor/ahorro/internal/query"
	"github.com/zombor/ahorro/internal/receipt"
	"github.com/zombor/ahorro/internal/scanning"
)

func whiteJPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	Expect(jpeg.Encode(&buf, img, nil)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Integration", func() {
	var (
		dbPath    string
		db        *receipt.BoltDB
		store     *receipt.LocalStorage
		repo      *receipt.Repository
		pipeline  *receipt.Pipeline
		queries   *query.Engine
		summaries *analytics.Engine
		ghServer  *ghttp.Server
		cancel    context.CancelFunc
		err       error
	)

	BeforeEach(func() {
		tempDir := GinkgoT().TempDir()
		dbPath = filepath.Join(tempDir, "ahorro.db")

		db, err = receipt.NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())

		store, err = receipt.NewLocalStorage(filepath.Join(tempDir, "receipts"))
		Expect(err).NotTo(HaveOccurred())

		repo = receipt.NewRepository(db, store)
		Expect(repo.Load()).To(Succeed())

		scanner, err := scanning.New(scanning.Config{Provider: "fallback"})
		Expect(err).NotTo(HaveOccurred())
		pipeline = receipt.NewPipeline(repo, scanner, store, 2)

		queries = query.NewEngine()
		summaries = analytics.NewEngine()

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		go queries.Run(ctx, repo.Subscribe())
		go summaries.Run(ctx, repo.Subscribe())

		server := NewServer(Deps{
			Records:   repo,
			Ingester:  pipeline,
			Files:     store,
			Queries:   queries,
			Analytics: summaries,
		}, BasicAuth{})

		ghServer = ghttp.NewServer()
		routeAll(ghServer, server.ServeHTTP)
	})

	AfterEach(func() {
		cancel()
		ghServer.Close()
		pipeline.Wait()
		repo.Close()
		db.Close()
	})

	uploadPhoto := func(description string) receipt.Receipt {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="IMG 0001.JPG"`)
		h.Set("Content-Type", "image/jpeg")
		part, err := writer.CreatePart(h)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(whiteJPEG(100, 100))
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.WriteField("description", description)).To(Succeed())
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(ghServer.URL()+"/api/receipts", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var created receipt.Receipt
		Expect(json.NewDecoder(resp.Body).Decode(&created)).To(Succeed())
		return created
	}

	It("ingests a photo without a provider and serves it back", func() {
		created := uploadPhoto("Café Juan")

		Expect(created.MerchantName).To(Equal(scanning.FallbackMerchant))
		Expect(created.Description).To(Equal("Café Juan"))
		Expect(created.Category).To(Equal(receipt.CategoryOther))
		Expect(created.Amount.Equal(decimal.NewFromInt(19990))).To(BeTrue())
		Expect(created.Attachment.Path).To(HavePrefix("attachments/" + created.ID + "-"))
		Expect(created.Attachment.Path).To(HaveSuffix(".jpg"))
		Expect(created.Attachment.ThumbnailPath).NotTo(BeEmpty())

		By("serving the stored photo")
		resp, err := http.Get(ghServer.URL() + "/api/receipts/" + created.ID + "/file")
		Expect(err).NotTo(HaveOccurred())
		photo, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Header.Get("Content-Type")).To(Equal("image/jpeg"))
		Expect(photo).To(Equal(whiteJPEG(100, 100)))

		By("serving the thumbnail")
		resp, err = http.Get(ghServer.URL() + "/api/receipts/" + created.ID + "/thumbnail")
		Expect(err).NotTo(HaveOccurred())
		thumb, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		Expect(err).NotTo(HaveOccurred())
		cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Width).To(Equal(100))

		By("answering a question once the query engine has caught up")
		Eventually(func() int {
			return len(queries.Snapshot().Receipts)
		}).Should(Equal(1))

		resp, err = http.Post(ghServer.URL()+"/api/queries", "application/json", strings.NewReader(`{"prompt":"café juan"}`))
		Expect(err).NotTo(HaveOccurred())
		var answer struct {
			Receipts []receipt.Receipt `json:"receipts"`
			Answer   query.Answer      `json:"answer"`
		}
		Expect(json.NewDecoder(resp.Body).Decode(&answer)).To(Succeed())
		resp.Body.Close()
		Expect(answer.Receipts).To(HaveLen(1))
		Expect(answer.Answer.Total.Equal(decimal.NewFromInt(19990))).To(BeTrue())

		By("summarizing the current month")
		Eventually(func() bool {
			_, ok := summaries.Current()
			return ok
		}).Should(BeTrue())

		resp, err = http.Get(ghServer.URL() + "/api/analytics/summary")
		Expect(err).NotTo(HaveOccurred())
		var summary analytics.Summary
		Expect(json.NewDecoder(resp.Body).Decode(&summary)).To(Succeed())
		resp.Body.Close()
		Expect(summary.TotalSpent.Equal(decimal.NewFromInt(19990))).To(BeTrue())
	})

	It("keeps ingested receipts across a restart", func() {
		for i := 0; i < 3; i++ {
			uploadPhoto(fmt.Sprintf("boleta %d", i))
		}
		repo.Close()
		Expect(db.Close()).To(Succeed())

		db, err = receipt.NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
		repo = receipt.NewRepository(db, store)
		Expect(repo.Load()).To(Succeed())

		receipts := repo.List()
		Expect(receipts).To(HaveLen(3))
		for i, r := range receipts {
			Expect(r.Description).To(Equal(fmt.Sprintf("boleta %d", i)))
		}
	})

	It("deletes a receipt together with its files", func() {
		created := uploadPhoto("")

		req, err := http.NewRequest(http.MethodDelete, ghServer.URL()+"/api/receipts/"+created.ID, nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

		_, err = store.Get(created.Attachment.Path)
		Expect(err).To(HaveOccurred())
		_, err = store.Get(created.Attachment.ThumbnailPath)
		Expect(err).To(HaveOccurred())

		Eventually(func() int {
			return len(queries.Snapshot().Receipts)
		}).Should(BeZero())
	})

	It("keeps a date-only purchase on its calendar day in the local zone", func() {
		provider := ghttp.NewServer()
		defer provider.Close()
		provider.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
			"message": map[string]string{
				"role":    "assistant",
				"content": `{"title":"Jumbo","merchantName":"Jumbo","purchaseDate":"2025-03-01","totalAmount":1000,"currencyCode":"CLP","category":"groceries"}`,
			},
			"done": true,
		}))

		scanner, err := scanning.NewOllama(provider.URL(), "llava", 0)
		Expect(err).NotTo(HaveOccurred())
		ingest := receipt.NewPipeline(repo, scanner, store, 1)

		res := <-ingest.Submit(receipt.Submission{Data: whiteJPEG(10, 10), Filename: "boleta.jpg", MimeType: "image/jpeg"})
		Expect(res.Err).NotTo(HaveOccurred())

		march := time.Date(2025, 3, 15, 12, 0, 0, 0, time.Local)
		summary := analytics.Recompute(repo.List(), march)
		Expect(summary).NotTo(BeNil())
		Expect(summary.TotalSpent.Equal(decimal.NewFromInt(1000))).To(BeTrue())
		Expect(summary.Daily).To(HaveLen(1))
		Expect(summary.Daily[0].Day.Day()).To(Equal(1))

		Expect(analytics.Recompute(repo.List(), time.Date(2025, 2, 15, 12, 0, 0, 0, time.Local))).To(BeNil())

		Expect(query.Search(repo.List(), query.NewQuery("marzo", march))).To(HaveLen(1))
	})
})
