package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/billmate/billmate/app/models"
	"github.com/billmate/billmate/app/repository"
)

var validate = validator.New()

type clientRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zip_code"`
	Country     string `json:"country"`
	CompanyName string `json:"company_name"`
	Notes       string `json:"notes"`
}

func (r *clientRequest) apply(client *models.Client) {
	client.Name = r.Name
	client.Email = r.Email
	client.PhoneNumber = r.PhoneNumber
	client.Address = r.Address
	client.City = r.City
	client.State = r.State
	client.ZipCode = r.ZipCode
	client.Country = r.Country
	client.CompanyName = r.CompanyName
	client.Notes = r.Notes
}

// HandleListClients lists the caller's clients, optionally filtered by
// a search query.
func HandleListClients(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	repo := repository.GetGlobalFactory().GetClientRepository()
	if query := c.Query("q"); query != "" {
		clients, err := repo.Search(userCtx.UserID, query)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to search clients"})
		}
		return c.JSON(fiber.Map{"clients": clients})
	}

	offset, limit := parsePagination(c)
	clients, err := repo.GetByUserID(userCtx.UserID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load clients"})
	}
	total, err := repo.CountByUserID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count clients"})
	}
	return c.JSON(fiber.Map{"clients": clients, "total": total})
}

// HandleGetClient returns one client.
func HandleGetClient(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	client, err := repository.GetGlobalFactory().GetClientRepository().GetByID(c.Params("clientID"), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Client not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load client"})
	}
	return c.JSON(client)
}

// HandleCreateClient creates a client.
func HandleCreateClient(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req clientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid request body"})
	}

	client := models.Client{UserID: userCtx.UserID}
	req.apply(&client)
	if err := validate.Struct(&client); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	if err := repository.GetGlobalFactory().GetClientRepository().Create(&client); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create client"})
	}
	return c.Status(fiber.StatusCreated).JSON(client)
}

// HandleUpdateClient updates a client.
func HandleUpdateClient(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	repo := repository.GetGlobalFactory().GetClientRepository()
	client, err := repo.GetByID(c.Params("clientID"), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Client not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load client"})
	}

	var req clientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid request body"})
	}
	req.apply(client)
	if err := validate.Struct(client); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	if err := repo.Update(client); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update client"})
	}
	return c.JSON(client)
}

// HandleDeleteClient deletes a client and, through the schema's
// cascade, its invoices.
func HandleDeleteClient(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	err := repository.GetGlobalFactory().GetClientRepository().Delete(c.Params("clientID"), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Client not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete client"})
	}
	return c.JSON(fiber.Map{"message": "Client deleted"})
}
