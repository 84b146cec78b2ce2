package setup

import (
	"context"
	"time"

	"github.com/itchan-dev/blog/backend/internal/handler"
	"github.com/itchan-dev/blog/backend/internal/service"
	"github.com/itchan-dev/blog/backend/internal/storage/fs"
	"github.com/itchan-dev/blog/backend/internal/storage/pg"
	"github.com/itchan-dev/blog/shared/config"
	"github.com/itchan-dev/blog/shared/jwt"
	mw "github.com/itchan-dev/blog/shared/middleware"
	rl "github.com/itchan-dev/blog/shared/middleware/ratelimiter"
	"github.com/itchan-dev/blog/shared/validation"
)

// Dependencies struct to hold all initialized dependencies.
type Dependencies struct {
	Config         *config.Config
	Storage        *pg.Storage
	Media          *fs.Storage
	Handler        *handler.Handler
	AuthMiddleware *mw.Auth
	MediaGC        *service.MediaGarbageCollector
	LoginLimiter   *rl.KeyedLimiter
	ReadLimiter    *rl.KeyedLimiter
}

// SetupDependencies initializes all dependencies required for the application.
func SetupDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	storage, err := pg.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	media, err := fs.New(cfg.Public.Upload)
	if err != nil {
		storage.Cleanup()
		return nil, err
	}

	jwtService := jwt.New(cfg.JwtKey(), cfg.JwtTTL())
	// Image and post deletes on the same post must not interleave.
	locker := service.NewPostLocker()

	upload := cfg.Public.Upload
	images := service.NewImage(
		storage,
		media,
		validation.NewImageValidator(upload.AllowedMimeTypes, upload.MaxSizeBytes),
		validation.NewContentTypeDetector(),
		locker,
	)
	posts := service.NewPost(storage, media, validation.NewPostValidator(), locker, cfg.Public.PostsPerPage)
	auth := service.NewAuth(cfg.Private.AdminPasswordHash, jwtService)

	return &Dependencies{
		Config:         cfg,
		Storage:        storage,
		Media:          media,
		Handler:        handler.New(auth, posts, images, cfg,
			handler.DependencyCheck{Name: "database", Checker: storage},
			handler.DependencyCheck{Name: "uploads", Checker: media},
		),
		AuthMiddleware: mw.NewAuth(jwtService),
		MediaGC:        service.NewMediaGarbageCollector(storage, media, cfg.Public.GCSafetyThreshold),
		// a short burst, then one login attempt per second per IP
		LoginLimiter: rl.New(1, 5, time.Hour),
		ReadLimiter:  rl.New(20, 40, 10*time.Minute),
	}, nil
}

// Close releases resources held by the dependencies.
func (d *Dependencies) Close() {
	d.LoginLimiter.Stop()
	d.ReadLimiter.Stop()
	d.Storage.Cleanup()
}
