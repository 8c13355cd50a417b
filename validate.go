package main

import (
	"fmt"
	"strings"

	validator "github.com/go-playground/validator/v10"
)

const pqserverCmdTag = "pqserver_cmd"

type catalog struct {
	Experiments []Experiment `validate:"required,min=1,unique=Name,dive"`
}

func RegisterCatalogValidators(v *validator.Validate) error {
	if err := v.RegisterValidation(pqserverCmdTag, validatePqserverCmd); err != nil {
		return fmt.Errorf("failed to register %v validator: %w", pqserverCmdTag, err)
	}
	return nil
}

func validatePqserverCmd(fl validator.FieldLevel) bool {
	return strings.Contains(fl.Field().String(), "pqserver")
}

func ValidateCatalog(experiments []Experiment) error {
	v := validator.New()
	if err := RegisterCatalogValidators(v); err != nil {
		return err
	}
	if err := v.Struct(catalog{Experiments: experiments}); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	return nil
}
