package receipt

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("GroupByCategory", func() {
	It("returns one entry for a single receipt", func() {
		r := sampleReceipt("a", CategoryDining, time.Now())

		groups := GroupByCategory([]Receipt{r})
		Expect(groups).To(HaveLen(1))
		Expect(groups).To(HaveKey(CategoryDining))
		Expect(groups[CategoryDining]).To(HaveLen(1))
	})

	It("keeps input order within a group", func() {
		now := time.Now()
		groups := GroupByCategory([]Receipt{
			sampleReceipt("a", CategoryHealth, now),
			sampleReceipt("b", CategoryDining, now),
			sampleReceipt("c", CategoryHealth, now),
		})
		Expect(groups).To(HaveLen(2))
		Expect(groups[CategoryHealth][0].ID).To(Equal("a"))
		Expect(groups[CategoryHealth][1].ID).To(Equal("c"))
	})

	It("returns an empty map for no receipts", func() {
		Expect(GroupByCategory(nil)).To(BeEmpty())
	})
})

var _ = Describe("Group", func() {
	var (
		day      time.Time
		receipts []Receipt
	)

	BeforeEach(func() {
		day = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

		jumbo := sampleReceipt("jumbo", CategoryGroceries, day.AddDate(0, 0, -2))
		jumbo.MerchantName = "Jumbo"
		cafe := sampleReceipt("cafe", CategoryDining, day)
		cafe.Title = "Café Juan"
		cafe.Keywords = []string{"cortado"}
		lider := sampleReceipt("lider", CategoryGroceries, day)
		sushi := sampleReceipt("sushi", CategoryDining, day.AddDate(0, 0, -5))
		sushi.Keywords = []string{"Sushi"}

		receipts = []Receipt{jumbo, cafe, lider, sushi}
	})

	It("groups every receipt by category in display order when the search is blank", func() {
		groups := Group(receipts, "  ")
		Expect(groups).To(HaveLen(2))
		Expect(groups[0].Category).To(Equal(CategoryGroceries))
		Expect(groups[0].Title).To(Equal("Supermercado"))
		Expect(groups[1].Category).To(Equal(CategoryDining))
	})

	It("orders each group newest purchase first", func() {
		groups := Group(receipts, "")
		Expect(groups[0].Receipts[0].ID).To(Equal("lider"))
		Expect(groups[0].Receipts[1].ID).To(Equal("jumbo"))
		Expect(groups[1].Receipts[0].ID).To(Equal("cafe"))
		Expect(groups[1].Receipts[1].ID).To(Equal("sushi"))
	})

	It("matches title, merchant and keywords ignoring case", func() {
		Expect(Group(receipts, "CAFÉ")[0].Receipts).To(HaveLen(1))
		Expect(Group(receipts, "jumbo")[0].Receipts[0].ID).To(Equal("jumbo"))
		Expect(Group(receipts, "sushi")[0].Receipts[0].ID).To(Equal("sushi"))
		Expect(Group(receipts, "Cortado")[0].Receipts[0].ID).To(Equal("cafe"))
	})

	It("leaves out categories without matches", func() {
		groups := Group(receipts, "jumbo")
		Expect(groups).To(HaveLen(1))
		Expect(groups[0].Category).To(Equal(CategoryGroceries))
	})

	It("returns no groups when nothing matches", func() {
		Expect(Group(receipts, "farmacia")).To(BeEmpty())
	})

	It("does not reorder the input", func() {
		Group(receipts, "")
		Expect(receipts[0].ID).To(Equal("jumbo"))
		Expect(receipts[2].ID).To(Equal("lider"))
	})
})

var _ = Describe("Clone", func() {
	It("does not share slices, maps or pointers", func() {
		r := fullReceipt()
		c := r.Clone()

		c.Keywords[0] = "x"
		c.Metadata["rut"] = "x"
		*c.TaxAmount = c.TaxAmount.Neg()
		c.Location.Latitude = 0

		Expect(r.Keywords[0]).To(Equal("leche"))
		Expect(r.Metadata["rut"]).To(Equal("76.123.456-7"))
		Expect(r.TaxAmount.IsPositive()).To(BeTrue())
		Expect(r.Location.Latitude).To(Equal(-33.39))
	})
})

var _ = Describe("Category", func() {
	It("lists every category in display order", func() {
		cats := Categories()
		Expect(cats).To(HaveLen(13))
		Expect(cats[0]).To(Equal(CategoryHousing))
		Expect(cats[12]).To(Equal(CategoryOther))
	})

	It("has a Spanish title", func() {
		Expect(CategoryGroceries.Title()).To(Equal("Supermercado"))
		Expect(CategoryHousing.Title()).To(Equal("Arriendo / Hipoteca"))
		Expect(Category("bogus").Title()).To(Equal("Otros"))
	})

	DescribeTable("ParseCategory",
		func(in string, want Category) {
			Expect(ParseCategory(in)).To(Equal(want))
		},
		Entry("known identifier", "dining", CategoryDining),
		Entry("mixed case", " Travel ", CategoryTravel),
		Entry("unknown identifier", "pets", CategoryOther),
		Entry("empty", "", CategoryOther),
	)
})
