// cmd/menu/menu.go
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"shelfsort/internal/blob"
	"shelfsort/internal/catalog"
)

const csvFile = "LibraryData.csv"

type menu struct {
	svc    catalog.Service
	sink   blob.Sink
	probes int
	in     *bufio.Scanner
	out    io.Writer
}

// run loops until the user exits or input ends. Service errors are shown
// and the loop continues.
func (m *menu) run(ctx context.Context) error {
	for {
		fmt.Fprintln(m.out, "\nLibrary Management System")
		fmt.Fprintln(m.out, "1. Display Unsorted Data")
		fmt.Fprintln(m.out, "2. Sorting Options")
		fmt.Fprintln(m.out, "3. Searching Options")
		fmt.Fprintln(m.out, "4. Additional Functionalities")
		fmt.Fprintln(m.out, "5. Save Data to CSV (Excel)")
		fmt.Fprintln(m.out, "6. Exit")

		choice, err := m.promptInt("Enter your choice: ")
		if err != nil {
			return err
		}

		switch choice {
		case 1:
			err = m.display(ctx)
		case 2:
			err = m.sort(ctx)
		case 3:
			err = m.search(ctx)
		case 4:
			err = m.additional(ctx)
		case 5:
			err = m.save(ctx)
		case 6:
			fmt.Fprintln(m.out, "Exiting program.")
			return nil
		default:
			fmt.Fprintln(m.out, "Invalid choice! Please try again.")
		}
		if errors.Is(err, io.EOF) {
			return err
		}
		if err != nil {
			fmt.Fprintf(m.out, "\nError: %v\n", err)
		}
	}
}

func (m *menu) display(ctx context.Context) error {
	books, err := m.svc.Books(ctx, catalog.DisplayLimit)
	if err != nil {
		return err
	}
	for _, b := range books {
		m.printBook(b)
	}
	return nil
}

func (m *menu) printBook(b catalog.Book) {
	fmt.Fprintf(m.out, "BookID: %d, Title: %s, Author: %s, Year: %d, Genre: %s, Price: RM%.2f, Copies: %d, Rating: %.1f\n",
		b.ID, b.Title, b.Author, b.YearPublished, b.Genre, b.Price, b.CopiesAvailable, b.Rating)
}

func (m *menu) sort(ctx context.Context) error {
	fmt.Fprintln(m.out, "\nSorting Options")
	fmt.Fprintln(m.out, "1. Bubble Sort")
	fmt.Fprintln(m.out, "2. Quick Sort")
	choice, err := m.promptInt("Enter your choice: ")
	if err != nil {
		return err
	}

	var algorithm catalog.Algorithm
	switch choice {
	case 1:
		algorithm = catalog.AlgorithmBubble
	case 2:
		algorithm = catalog.AlgorithmQuick
	default:
		fmt.Fprintln(m.out, "Invalid sorting choice!")
		return nil
	}

	result, err := m.svc.Sort(ctx, algorithm, catalog.OrderID)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "\n%s Sort completed in %s with %d swaps.\n",
		label(algorithm), formatElapsed(result.Elapsed), result.Swaps)
	return m.display(ctx)
}

func (m *menu) search(ctx context.Context) error {
	fmt.Fprintln(m.out, "\nSearching Options")
	fmt.Fprintln(m.out, "1. Linear Search")
	fmt.Fprintln(m.out, "2. Binary Search")
	choice, err := m.promptInt("Enter your choice: ")
	if err != nil {
		return err
	}

	var algorithm catalog.Algorithm
	switch choice {
	case 1:
		algorithm = catalog.AlgorithmLinear
	case 2:
		algorithm = catalog.AlgorithmBinary
	default:
		fmt.Fprintln(m.out, "Invalid searching choice!")
		return nil
	}

	ids, err := m.svc.ProbeIDs(ctx, m.probes)
	if err != nil {
		return err
	}
	result, err := m.svc.Search(ctx, algorithm, ids)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "\n%s Search Results:\n", label(algorithm))
	for _, p := range result.Probes {
		status := "NOT FOUND"
		if p.Found {
			status = "FOUND"
		}
		fmt.Fprintf(m.out, "BookID: %d - %s\n", p.ID, status)
	}
	if algorithm == catalog.AlgorithmBinary && !result.SortedByID {
		fmt.Fprintln(m.out, "Warning: the catalog is not sorted by id; misses may be false.")
	}
	fmt.Fprintf(m.out, "\nSearch completed in %s with %d total comparisons.\n",
		formatElapsed(result.Elapsed), result.Comparisons)
	return nil
}

func (m *menu) additional(ctx context.Context) error {
	fmt.Fprintln(m.out, "\nAdditional Functionalities:")
	fmt.Fprintln(m.out, "1. Calculate Total Value of Books")
	fmt.Fprintln(m.out, "2. Generate Highly Rated Books Report")
	fmt.Fprintln(m.out, "3. Purchase a Book")
	choice, err := m.promptInt("Enter your choice: ")
	if err != nil {
		return err
	}

	switch choice {
	case 1:
		total, err := m.svc.TotalValue(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(m.out, "\nThe total value of books in stock is: RM%.2f\n", total)
	case 2:
		threshold, err := m.promptFloat("Enter the rating threshold: ")
		if err != nil {
			return err
		}
		books, err := m.svc.HighlyRated(ctx, threshold)
		if err != nil {
			return err
		}
		fmt.Fprintf(m.out, "\nBooks with a rating above %g:\n", threshold)
		for _, b := range books {
			m.printBook(b)
		}
	case 3:
		id, err := m.promptInt("Enter the Book ID to purchase: ")
		if err != nil {
			return err
		}
		quantity, err := m.promptInt("Enter the quantity to purchase: ")
		if err != nil {
			return err
		}
		receipt, err := m.svc.Purchase(ctx, id, quantity)
		switch {
		case errors.Is(err, catalog.ErrBookNotFound):
			fmt.Fprintln(m.out, "\nBook ID not found!")
		case errors.Is(err, catalog.ErrInsufficientCopies):
			fmt.Fprintln(m.out, "\nInsufficient copies available!")
		case err != nil:
			return err
		default:
			fmt.Fprintf(m.out, "\nPurchase successful! Total cost: RM%.2f\n", receipt.TotalCost)
		}
	default:
		fmt.Fprintln(m.out, "Invalid choice!")
	}
	return nil
}

func (m *menu) save(ctx context.Context) error {
	var buf bytes.Buffer
	if err := m.svc.ExportCSV(ctx, &buf); err != nil {
		return err
	}
	location, err := m.sink.Put(ctx, csvFile, &buf, "text/csv")
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Data successfully saved to %s\n", location)
	return nil
}

// promptInt reads one line as an integer. Non-numeric input is answered
// with -1 so it falls through to the invalid-choice branches.
func (m *menu) promptInt(prompt string) (int, error) {
	line, err := m.prompt(prompt)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(line)
	if err != nil {
		return -1, nil
	}
	return v, nil
}

func (m *menu) promptFloat(prompt string) (float64, error) {
	for {
		line, err := m.prompt(prompt)
		if err != nil {
			return 0, err
		}
		if v, err := strconv.ParseFloat(line, 64); err == nil {
			return v, nil
		}
		fmt.Fprintln(m.out, "Please enter a number.")
	}
}

func (m *menu) prompt(prompt string) (string, error) {
	fmt.Fprint(m.out, prompt)
	if !m.in.Scan() {
		if err := m.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(m.in.Text()), nil
}

func label(a catalog.Algorithm) string {
	switch a {
	case catalog.AlgorithmBubble:
		return "Bubble"
	case catalog.AlgorithmQuick:
		return "Quick"
	case catalog.AlgorithmLinear:
		return "Linear"
	case catalog.AlgorithmBinary:
		return "Binary"
	}
	return string(a)
}

func formatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.3f ms", float64(d)/float64(time.Millisecond))
}
