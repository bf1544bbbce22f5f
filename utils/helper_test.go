package utils

import (
	"errors"
	"fmt"
	"testing"
)

type sampleInput struct {
	ItemNumber string `validate:"required,max=4"`
}

func TestValidateStructReturnsInputError(t *testing.T) {
	err := ValidateStruct(&sampleInput{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected an input error, got %v", err)
	}
	if err.Error() != "invalid itemNumber: required" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if err := ValidateStruct(&sampleInput{ItemNumber: "0001"}); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
}

func TestInvalidInputMatchesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("create item: %w", InvalidInput("duplicate item_number"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("wrapped input error must match ErrInvalidInput")
	}
	if errors.Is(errors.New("duplicate item_number"), ErrInvalidInput) {
		t.Fatalf("plain errors are not input errors")
	}
}
