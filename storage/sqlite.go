package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"imusic/config"
	"imusic/types"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const errDBClientNil = "db client is nil"

// ErrSongNotFound is returned when a song id does not exist.
var ErrSongNotFound = errors.New("song not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Song is one imported audio file.
type Song struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string    `gorm:"index:idx_song_meta,priority:1" json:"title"`
	Artist      string    `gorm:"index:idx_song_meta,priority:2" json:"artist"`
	AlbumName   string    `gorm:"index:idx_album_name" json:"album_name"`
	FileName    string    `gorm:"index:idx_file_name" json:"file_name"`
	Path        string    `gorm:"uniqueIndex:idx_song_path" json:"path"`
	Format      string    `json:"format"`
	Size        int64     `json:"size"`
	TrackNumber int       `json:"track_number,omitempty"`
	Lyrics      string    `json:"lyrics,omitempty"`
	Favorite    bool      `gorm:"-" json:"favorite"`
	CreatedAt   time.Time `json:"created_at"`
}

// Favorite references a liked song.
type Favorite struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SongID     uint      `gorm:"uniqueIndex:idx_favorite_song" json:"song_id"`
	IsExternal bool      `json:"is_external"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewDBClient() (*DBClient, error) {
	return NewDBClientWithPath(config.GetDBPath())
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// sqlite allows a single writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Song{}, &Favorite{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) ready() error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return nil
}

// AddSong inserts song unless a song with the same path is already stored.
// It reports whether a row was created; on false song holds the stored row.
func (c *DBClient) AddSong(song *Song) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}

	var existing Song
	err := c.DB.Where("path = ?", song.Path).First(&existing).Error
	if err == nil {
		*song = existing
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("querying existing song: %w", err)
	}

	if err := c.DB.Create(song).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
			if fetchErr := c.DB.Where("path = ?", song.Path).First(&existing).Error; fetchErr != nil {
				return false, fmt.Errorf("fetching song after constraint violation: %w", fetchErr)
			}
			*song = existing
			return false, nil
		}
		return false, fmt.Errorf("creating song: %w", err)
	}
	return true, nil
}

// ListSongs returns every song in insertion order.
func (c *DBClient) ListSongs() ([]Song, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var songs []Song
	if err := c.DB.Order("id").Find(&songs).Error; err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}
	return songs, nil
}

// likeEscaper makes LIKE treat the user's % and _ as plain characters.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchSongs matches query against title, artist and album name.
// An empty query lists everything.
func (c *DBClient) SearchSongs(query string) ([]Song, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.ListSongs()
	}
	if err := c.ready(); err != nil {
		return nil, err
	}

	like := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	var songs []Song
	err := c.DB.
		Where(`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(artist) LIKE ? ESCAPE '\' OR LOWER(album_name) LIKE ? ESCAPE '\'`, like, like, like).
		Order("id").
		Find(&songs).Error
	if err != nil {
		return nil, fmt.Errorf("searching songs: %w", err)
	}
	return songs, nil
}

func (c *DBClient) GetSong(id uint) (*Song, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var song Song
	if err := c.DB.First(&song, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSongNotFound
		}
		return nil, fmt.Errorf("fetching song %d: %w", id, err)
	}
	return &song, nil
}

func (c *DBClient) UpdateLyrics(id uint, lyrics string) error {
	if err := c.ready(); err != nil {
		return err
	}
	res := c.DB.Model(&Song{}).Where("id = ?", id).Update("lyrics", lyrics)
	if res.Error != nil {
		return fmt.Errorf("updating lyrics: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSongNotFound
	}
	return nil
}

// DeleteSong removes a song and its favorite reference.
func (c *DBClient) DeleteSong(id uint) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("song_id = ?", id).Delete(&Favorite{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Song{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSongNotFound
		}
		return nil
	})
}

// PruneMissing deletes songs whose file is gone from disk and returns how
// many were removed.
func (c *DBClient) PruneMissing() (int, error) {
	songs, err := c.ListSongs()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, song := range songs {
		if _, err := os.Stat(song.Path); !os.IsNotExist(err) {
			continue
		}
		if err := c.DeleteSong(song.ID); err != nil {
			return removed, fmt.Errorf("pruning song %d: %w", song.ID, err)
		}
		slog.Debug("pruned missing song", "id", song.ID, "path", song.Path)
		removed++
	}
	return removed, nil
}

// ListAlbums returns distinct album names with their song counts.
func (c *DBClient) ListAlbums() ([]types.Album, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var rows []struct {
		AlbumName string
		Count     int
	}
	err := c.DB.Model(&Song{}).
		Select("album_name, COUNT(*) AS count").
		Group("album_name").
		Order("album_name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing albums: %w", err)
	}

	albums := make([]types.Album, 0, len(rows))
	for _, r := range rows {
		albums = append(albums, types.Album{Name: r.AlbumName, SongCount: r.Count})
	}
	return albums, nil
}

func (c *DBClient) SongsByAlbum(name string) ([]Song, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var songs []Song
	if err := c.DB.Where("album_name = ?", name).Order("track_number, id").Find(&songs).Error; err != nil {
		return nil, fmt.Errorf("listing album %q: %w", name, err)
	}
	return songs, nil
}

// ListFavoriteSongs returns liked songs in the order they were liked.
func (c *DBClient) ListFavoriteSongs() ([]Song, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var songs []Song
	err := c.DB.
		Joins("JOIN favorites ON favorites.song_id = songs.id").
		Order("favorites.id").
		Find(&songs).Error
	if err != nil {
		return nil, fmt.Errorf("listing favorites: %w", err)
	}
	for i := range songs {
		songs[i].Favorite = true
	}
	return songs, nil
}

// FavoriteSongIDs returns the set of liked song ids.
func (c *DBClient) FavoriteSongIDs() (map[uint]bool, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var favs []Favorite
	if err := c.DB.Find(&favs).Error; err != nil {
		return nil, fmt.Errorf("listing favorites: %w", err)
	}
	ids := make(map[uint]bool, len(favs))
	for _, f := range favs {
		ids[f.SongID] = true
	}
	return ids, nil
}

// ToggleFavorite removes the favorite reference for songID if present and
// adds it otherwise. It returns whether the song is liked afterwards.
func (c *DBClient) ToggleFavorite(songID uint) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}

	liked := false
	err := c.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Song{}).Where("id = ?", songID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrSongNotFound
		}

		var fav Favorite
		err := tx.Where("song_id = ?", songID).First(&fav).Error
		if err == nil {
			return tx.Delete(&fav).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		liked = true
		return tx.Create(&Favorite{SongID: songID}).Error
	})
	if err != nil {
		if errors.Is(err, ErrSongNotFound) {
			return false, err
		}
		return false, fmt.Errorf("toggling favorite: %w", err)
	}
	return liked, nil
}

// MarkFavorites sets Favorite on each song that is liked.
func (c *DBClient) MarkFavorites(songs []Song) error {
	ids, err := c.FavoriteSongIDs()
	if err != nil {
		return err
	}
	for i := range songs {
		songs[i].Favorite = ids[songs[i].ID]
	}
	return nil
}
