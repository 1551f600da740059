package main

import (
	"fmt"
	"os"

	"capmail/backend/internal/auth"
)

// 为 CAPMAIL_ADMIN_PASSWORDS / CAPMAIL_ACCESS_PASSWORDS 生成 bcrypt 哈希
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: hashpass <password> [password...]")
		os.Exit(1)
	}

	for _, password := range os.Args[1:] {
		if password == "" {
			fmt.Println("Password must not be empty")
			os.Exit(1)
		}

		hashed, err := auth.HashPassword(password)
		if err != nil {
			fmt.Printf("Failed to hash password: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(hashed)
	}
}
