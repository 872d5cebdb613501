package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/mail"
	"os"
	"time"

	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/di"
	"github.com/mikey/mail-triage/internal/engine"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run classifies and routes one message, then prints the verdict.
func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	service *core.TriageService,
	ruleEngine *engine.Engine,
) error {
	defer logger.Sync()

	msg, err := readMessage(flags, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	outcome, err := service.Receive(ctx, msg)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	result := outcome.Classification
	eval := ruleEngine.Evaluate(msg, result)

	fmt.Println("=== Triage Result ===")
	fmt.Printf("Message ID:  %s\n", outcome.MessageID)
	fmt.Printf("Category:    %s\n", result.Category)
	fmt.Printf("Department:  %s\n", result.Department)
	fmt.Printf("Confidence:  %.4f\n", result.Confidence)
	fmt.Printf("Stage:       %s\n", result.Stage)
	if result.Explanation != "" {
		fmt.Printf("Explanation: %s\n", result.Explanation)
	}

	fmt.Printf("\nMatched rules: %d\n", len(eval.Matched))
	for _, rule := range eval.Matched {
		marker := ""
		if rule.Stop {
			marker = " (stop)"
		}
		fmt.Printf("  [%d] %s%s\n", rule.Priority, rule.RuleName, marker)
		for _, action := range rule.Actions {
			fmt.Printf("      - %s: %s\n", action.Type, action.Value)
		}
	}

	return nil
}

// readMessage parses the input message from the flag-selected file or
// stdin.
func readMessage(flags *di.CLIFlags, logger *zap.Logger) (*core.Message, error) {
	var reader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file %s: %w", flags.InputFile, err)
		}
		defer file.Close()
		reader = file
		logger.Info("Reading message from file", zap.String("file", flags.InputFile))
	} else {
		reader = os.Stdin
		logger.Info("Reading message from stdin")
	}

	parsed, err := mail.ReadMessage(bufio.NewReader(reader))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	body, err := io.ReadAll(parsed.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}

	msg := &core.Message{
		Subject:   parsed.Header.Get("Subject"),
		Body:      string(body),
		Sender:    parsed.Header.Get("From"),
		Recipient: parsed.Header.Get("To"),
		Headers:   map[string]string{},
	}
	if flags.Sender != "" {
		msg.Sender = flags.Sender
	}
	if date, err := parsed.Header.Date(); err == nil {
		msg.ReceivedAt = date
	}

	return msg, nil
}
