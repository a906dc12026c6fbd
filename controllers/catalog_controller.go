package controllers

import (
	"github.com/gin-gonic/gin"

	"studyhub/middleware"
	"studyhub/models"
	"studyhub/services"
	"studyhub/store"
	"studyhub/utils"
)

type CatalogController struct {
	cache   *services.SnapshotCache
	catalog *services.CatalogService
	store   store.TreeStore
}

func NewCatalogController(cache *services.SnapshotCache, catalog *services.CatalogService, st store.TreeStore) *CatalogController {
	return &CatalogController{
		cache:   cache,
		catalog: catalog,
		store:   st,
	}
}

// GetFilterOptions returns the dropdown options valid for the current
// selection. Options for a level are empty until every level above it is set.
func (cc *CatalogController) GetFilterOptions(c *gin.Context) {
	db := cc.cache.Tree()
	sel := selectionFromQuery(c)

	utils.SuccessResponse(c, "Filter options retrieved", gin.H{
		"selection": sel,
		"colleges":  cc.catalog.CollegeOptions(db),
		"courses":   cc.catalog.CourseOptions(db, sel),
		"semesters": cc.catalog.SemesterOptions(db, sel),
		"docTypes":  models.DocTypes,
	})
}

// ChangeFilter applies a single filter change and returns the resulting
// selection with dependent fields reset.
func (cc *CatalogController) ChangeFilter(c *gin.Context) {
	var req struct {
		Selection models.Selection `json:"selection"`
		Field     string           `json:"field" binding:"required"`
		Value     string           `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request format", err.Error())
		return
	}

	switch req.Field {
	case services.FieldCollege, services.FieldCourse, services.FieldSemester, services.FieldDocType:
	default:
		utils.BadRequestResponse(c, "Unknown filter field", req.Field)
		return
	}

	sel := cc.catalog.ApplyFilterChange(req.Selection, req.Field, req.Value)
	db := cc.cache.Tree()

	utils.SuccessResponse(c, "Filter applied", gin.H{
		"selection": sel,
		"colleges":  cc.catalog.CollegeOptions(db),
		"courses":   cc.catalog.CourseOptions(db, sel),
		"semesters": cc.catalog.SemesterOptions(db, sel),
		"docTypes":  models.DocTypes,
	})
}

// GetItems lists the entries in the selected document-type bucket, newest
// first. The selection must be fully resolved before anything is returned.
func (cc *CatalogController) GetItems(c *gin.Context) {
	sel := selectionFromQuery(c)
	if !sel.Resolved() {
		utils.SuccessResponse(c, "Selection incomplete", gin.H{
			"items":   []models.Item{},
			"message": "Select all filters to view documents",
		})
		return
	}

	if cc.cache.Loading() {
		utils.SuccessResponse(c, "Catalog loading", gin.H{
			"items":   []models.Item{},
			"message": "Loading...",
		})
		return
	}

	items := cc.catalog.Query(cc.cache.Tree(), sel)
	message := ""
	if len(items) == 0 {
		message = "Nothing found !"
	}

	utils.SuccessResponse(c, "Items retrieved", gin.H{
		"items":   items,
		"message": message,
	})
}

// GetFolder lists the files inside a folder entry of the selected bucket.
func (cc *CatalogController) GetFolder(c *gin.Context) {
	folderID := c.Param("folderId")
	if folderID == "" {
		utils.BadRequestResponse(c, "Folder ID required", nil)
		return
	}

	folder, files, ok := cc.catalog.FolderItems(cc.cache.Tree(), folderID)
	if !ok {
		utils.NotFoundResponse(c, "Folder not found")
		return
	}

	utils.SuccessResponse(c, "Folder retrieved", gin.H{
		"folder": folder,
		"files":  files,
	})
}

// GetProfile returns the user's saved filter selection for prefill.
func (cc *CatalogController) GetProfile(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	if err := cc.cache.FollowUser(c.Request.Context(), user.ID); err != nil {
		utils.InternalServerErrorResponse(c, "Failed to load profile", err.Error())
		return
	}

	sel, found := cc.catalog.ProfileSelection(cc.cache.Tree(), user.ID)
	utils.SuccessResponse(c, "Profile retrieved", gin.H{
		"selection": sel,
		"saved":     found,
	})
}

// UpdateProfile saves the user's filter selection so later sessions start
// from it.
func (cc *CatalogController) UpdateProfile(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var sel models.Selection
	if err := c.ShouldBindJSON(&sel); err != nil {
		utils.BadRequestResponse(c, "Invalid request format", err.Error())
		return
	}

	profile := models.UserProfilePath(user.ID)
	err := cc.store.Update(c.Request.Context(), map[string]any{
		profile + "/college":  sel.College,
		profile + "/course":   sel.Course,
		profile + "/semester": sel.Semester,
	})
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to save profile", err.Error())
		return
	}

	utils.SuccessResponse(c, "Profile saved", gin.H{"selection": sel})
}

func selectionFromQuery(c *gin.Context) models.Selection {
	return models.Selection{
		College:  c.DefaultQuery("college", models.UnsetField),
		Course:   c.DefaultQuery("course", models.UnsetField),
		Semester: c.DefaultQuery("semester", models.UnsetField),
		DocType:  c.DefaultQuery("docType", models.UnsetField),
	}
}
