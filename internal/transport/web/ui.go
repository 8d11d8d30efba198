package web

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// indexPage — данные шаблона index.html.
type indexPage struct {
	Products []domain.Product
	Flash    string
	Error    string
	Form     productForm
}

type productForm struct {
	Name     string
	SKU      string
	Price    string
	Stock    string
	Category string
}

func formatMoney(m domain.Money) string {
	return m.String()
}

func (h *Handler) index(c *gin.Context) {
	h.renderIndex(c, http.StatusOK, indexPage{Flash: c.Query("flash")})
}

// submitProduct принимает форму добавления товара. При успехе делает redirect
// с сообщением, при ошибке отдаёт ту же страницу с текстом ошибки.
func (h *Handler) submitProduct(c *gin.Context) {
	form := productForm{
		Name:     c.PostForm("name"),
		SKU:      c.PostForm("sku"),
		Price:    c.PostForm("price"),
		Stock:    c.PostForm("stock"),
		Category: c.PostForm("category"),
	}

	product, err := h.addFromForm(c, form)
	if err != nil {
		status := statusFor(domain.KindOf(err))
		message := err.Error()
		if status == http.StatusInternalServerError {
			h.logger.WithError(err).Error("add product from form failed")
			message = "internal error"
		}
		h.renderIndex(c, status, indexPage{Error: message, Form: form})
		return
	}

	flash := "Added product " + product.Name + " (" + product.SKU + ")"
	c.Redirect(http.StatusSeeOther, "/?flash="+url.QueryEscape(flash))
}

func (h *Handler) addFromForm(c *gin.Context, form productForm) (domain.Product, error) {
	price, err := domain.ParseMoney(form.Price)
	if err != nil {
		return domain.Product{}, err
	}
	var stock int64
	if raw := strings.TrimSpace(form.Stock); raw != "" {
		stock, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.Product{}, domain.Validationf("invalid stock %q", raw)
		}
	}
	return h.svc.Catalog.AddProduct(c.Request.Context(), domain.NewProduct{
		Name:     form.Name,
		SKU:      form.SKU,
		Price:    price,
		Stock:    stock,
		Category: form.Category,
	})
}

func (h *Handler) renderIndex(c *gin.Context, status int, page indexPage) {
	products, err := h.svc.Catalog.ListProducts(c.Request.Context(), "", 0)
	if err != nil {
		h.logger.WithError(err).Error("list products for index failed")
		page.Error = "could not load products"
		status = http.StatusInternalServerError
	}
	page.Products = products
	c.HTML(status, "index.html", page)
}
