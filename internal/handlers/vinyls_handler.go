package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-vinyl-storefront/internal/auth"
	"github.com/imrishuroy/go-vinyl-storefront/internal/catalog"
	"github.com/imrishuroy/go-vinyl-storefront/internal/validation"
)

func (a *api) registerVinylRoutes(g *gin.RouterGroup) {
	g.GET("", a.listVinyls)
	g.GET("/search", a.searchVinyls)
	g.GET("/principal", a.principalVinyl)
	g.GET("/:id", a.getVinyl)

	admin := g.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("", a.createVinyl)
	admin.PATCH("/:id", a.updateVinyl)
	admin.DELETE("/:id", a.deleteVinyl)
}

func (a *api) listVinyls(c *gin.Context) {
	list, err := a.Vinyls.List(c.Request.Context())
	if err != nil {
		internalError(c, "list vinyls", err)
		return
	}
	respond(c, http.StatusOK, "Listed successfully", list)
}

func (a *api) searchVinyls(c *gin.Context) {
	term := strings.TrimSpace(c.Query("term"))
	if term == "" {
		respond(c, http.StatusBadRequest, "error", "term_required")
		return
	}
	list, err := a.Vinyls.Search(c.Request.Context(), term)
	if err != nil {
		internalError(c, "search vinyls", err)
		return
	}
	respond(c, http.StatusOK, "Search results", list)
}

func (a *api) getVinyl(c *gin.Context) {
	v, err := a.Vinyls.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		internalError(c, "get vinyl", err)
		return
	}
	if v == nil {
		notFound(c, "Vinyl")
		return
	}
	respond(c, http.StatusOK, "Listed one successfully", v)
}

// principalVinyl answers ?vinylId=&isPrincipal=; a false flag is a bad request.
func (a *api) principalVinyl(c *gin.Context) {
	id := c.Query("vinylId")
	isPrincipal, err := strconv.ParseBool(c.Query("isPrincipal"))
	if id == "" || err != nil {
		respond(c, http.StatusBadRequest, "error", "vinylId and isPrincipal are required")
		return
	}
	if !isPrincipal {
		respond(c, http.StatusBadRequest, "error", "Vinyl is not principal")
		return
	}
	v, err := a.Vinyls.Get(c.Request.Context(), id)
	if err != nil {
		internalError(c, "get vinyl", err)
		return
	}
	if v == nil {
		notFound(c, "Vinyl")
		return
	}
	respond(c, http.StatusOK, "Principal vinyl found", v)
}

func (a *api) createVinyl(c *gin.Context) {
	var req validation.CreateVinylRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}
	v := &catalog.Vinyl{
		Title:     req.Title,
		Artist:    req.Artist,
		Price:     *req.Price,
		Stock:     *req.Stock,
		CoverPath: req.CoverPath,
		Gallery:   req.Gallery,
	}
	if err := a.Vinyls.Create(c.Request.Context(), v); err != nil {
		internalError(c, "create vinyl", err)
		return
	}
	respond(c, http.StatusCreated, "Created Successfully", v)
}

func (a *api) updateVinyl(c *gin.Context) {
	ctx := c.Request.Context()
	var req validation.UpdateVinylRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}
	v, err := a.Vinyls.Get(ctx, c.Param("id"))
	if err != nil {
		internalError(c, "get vinyl", err)
		return
	}
	if v == nil {
		notFound(c, "Vinyl")
		return
	}

	if req.Title != nil {
		v.Title = *req.Title
	}
	if req.Artist != nil {
		v.Artist = *req.Artist
	}
	if req.Price != nil {
		v.Price = *req.Price
	}
	if req.Stock != nil {
		v.Stock = *req.Stock
	}
	if req.CoverPath != nil {
		v.CoverPath = *req.CoverPath
	}
	if req.Gallery != nil {
		v.Gallery = req.Gallery
	}
	if req.IsPrincipal != nil {
		v.Principal = *req.IsPrincipal
	}
	v.UpdatedAt = time.Now().UTC()

	if err := a.Vinyls.Save(ctx, v); err != nil {
		internalError(c, "save vinyl", err)
		return
	}
	respond(c, http.StatusOK, "Edited Successfully", v)
}

func (a *api) deleteVinyl(c *gin.Context) {
	id := c.Param("id")
	ok, err := a.Vinyls.Delete(c.Request.Context(), id)
	if err != nil {
		internalError(c, "delete vinyl", err)
		return
	}
	if !ok {
		notFound(c, "Vinyl")
		return
	}
	respond(c, http.StatusOK, "Deleted Successfully", id)
}
