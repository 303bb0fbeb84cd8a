package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dropDatabas3/caishen/internal/auth"
	"github.com/dropDatabas3/caishen/internal/cache"
	"github.com/dropDatabas3/caishen/internal/config"
	"github.com/dropDatabas3/caishen/internal/domain/repository"
	"github.com/dropDatabas3/caishen/internal/jwt"
	"github.com/dropDatabas3/caishen/internal/providers"
	"github.com/dropDatabas3/caishen/internal/security/password"
	"github.com/dropDatabas3/caishen/internal/store/pg"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func main() {
	var (
		configPath = envOr("CONFIG_PATH", "")
		envFile    = ".env"
		cfg        *config.Config
	)

	root := &cobra.Command{
		Use:           "caishenctl",
		Short:         "CLI de operación para Caishen (migraciones, usuarios, tokens)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				_ = godotenv.Load(envFile)
			}
			c, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = c
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "ruta a config.yaml (env CONFIG_PATH)")
	root.PersistentFlags().StringVar(&envFile, "env-file", envFile, "ruta a .env (opcional)")

	// ─── migrate ───
	migrateCmd := &cobra.Command{Use: "migrate", Short: "Migraciones del esquema postgres"}
	migrateUp := &cobra.Command{
		Use:   "up",
		Short: "Aplica todas las migraciones pendientes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pg.MigrateUp(cfg.Storage.DSN); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
	var downSteps int
	migrateDown := &cobra.Command{
		Use:   "down",
		Short: "Revierte N migraciones",
		RunE: func(cmd *cobra.Command, args []string) error {
			if downSteps <= 0 {
				return fmt.Errorf("--steps debe ser > 0")
			}
			if err := pg.MigrateDown(cfg.Storage.DSN, downSteps); err != nil {
				return err
			}
			fmt.Printf("reverted %d migration(s)\n", downSteps)
			return nil
		},
	}
	migrateDown.Flags().IntVar(&downSteps, "steps", 1, "cantidad de migraciones a revertir")
	migrateCmd.AddCommand(migrateUp, migrateDown)

	// ─── users ───
	openStore := func(ctx context.Context) (*pg.Store, error) {
		return pg.New(ctx, cfg.Storage.DSN, pg.PoolConfig{MaxConns: 2})
	}

	usersCmd := &cobra.Command{Use: "users", Short: "Administración directa de usuarios"}

	var adminName, adminEmail, adminPassword, adminBirth string
	createAdmin := &cobra.Command{
		Use:   "create-admin",
		Short: "Crea un usuario LOCAL administrador",
		RunE: func(cmd *cobra.Command, args []string) error {
			birth, err := time.Parse("2006-01-02", adminBirth)
			if err != nil {
				return fmt.Errorf("--birth-date: %w", err)
			}
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			codec, err := jwt.NewCodec(cfg.JWT.Secret, cfg.JWT.Algorithm, cfg.JWT.Leeway)
			if err != nil {
				return err
			}
			svc := auth.NewService(auth.Config{
				PasswordParams: password.Default,
				PasswordPolicy: password.Policy{
					MinLength:    cfg.Security.PasswordPolicy.MinLength,
					RequireUpper: cfg.Security.PasswordPolicy.RequireUpper,
					RequireDigit: cfg.Security.PasswordPolicy.RequireDigit,
				},
			}, auth.Deps{Users: st, Cache: cache.NewMemory("ctl"), Codec: codec, Providers: providers.NewRegistry()})

			u, err := svc.RegisterLocal(ctx, auth.RegisterInput{
				Name: adminName, Email: adminEmail, Password: adminPassword, BirthDate: birth, IsAdmin: true,
			})
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"id": u.ID, "email": u.Email, "is_admin": u.IsAdmin})
		},
	}
	createAdmin.Flags().StringVar(&adminName, "name", "admin", "nombre")
	createAdmin.Flags().StringVar(&adminEmail, "email", "", "email (requerido)")
	createAdmin.Flags().StringVar(&adminPassword, "password", envOr("CAISHEN_ADMIN_PASSWORD", ""), "contraseña (env CAISHEN_ADMIN_PASSWORD)")
	createAdmin.Flags().StringVar(&adminBirth, "birth-date", "2000-01-01", "fecha de nacimiento YYYY-MM-DD")
	_ = createAdmin.MarkFlagRequired("email")

	var listOffset, listLimit int
	listUsers := &cobra.Command{
		Use:   "list",
		Short: "Lista usuarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			us, err := st.List(ctx, repository.ListUsersFilter{Offset: listOffset, Limit: listLimit})
			if err != nil {
				return err
			}
			out := make([]map[string]any, 0, len(us))
			for _, u := range us {
				out = append(out, map[string]any{
					"id": u.ID, "email": u.Email, "name": u.Name,
					"auth_provider": u.AuthProvider, "is_admin": u.IsAdmin,
				})
			}
			return printJSON(out)
		},
	}
	listUsers.Flags().IntVar(&listOffset, "offset", 0, "offset")
	listUsers.Flags().IntVar(&listLimit, "limit", 100, "límite")
	usersCmd.AddCommand(createAdmin, listUsers)

	// ─── token ───
	tokenCmd := &cobra.Command{Use: "token", Short: "Utilidades de tokens"}
	decodeCmd := &cobra.Command{
		Use:   "decode <jwt>",
		Short: "Valida un token con el secreto configurado y muestra sus claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := jwt.NewCodec(cfg.JWT.Secret, cfg.JWT.Algorithm, cfg.JWT.Leeway)
			if err != nil {
				return err
			}
			claims, err := codec.Decode(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return printJSON(claims)
		},
	}
	tokenCmd.AddCommand(decodeCmd)

	root.AddCommand(migrateCmd, usersCmd, tokenCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
