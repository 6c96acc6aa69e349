package models

import "gorm.io/gorm"

// Product represents a downloadable digital product (theme, plugin, template).
// Prices are stored in the currency's minor unit (cents) so money math stays
// integral.
type Product struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Title       string `json:"title" validate:"required,min=3,max=100"`
	Slug        string `json:"slug" gorm:"uniqueIndex;type:varchar(120)" validate:"required"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	// Price is the standard-license unit price in cents. The extended license
	// is priced at exactly 2x this value at the time of sale.
	Price      int64         `json:"price" validate:"required,gt=0"`
	Currency   string        `json:"currency" gorm:"type:varchar(3);default:usd"`
	IsActive   bool          `json:"is_active" gorm:"default:true"`
	Files      []ProductFile `json:"files,omitempty" gorm:"foreignKey:ProductID"`
	gorm.Model               // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}

// ProductFile is one downloadable object belonging to a product, stored in the
// object-storage bucket at FilePath.
type ProductFile struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	ProductID  string `json:"product_id" gorm:"index;type:varchar(36)" validate:"required"`
	FileName   string `json:"file_name" validate:"required"`
	FilePath   string `json:"file_path" validate:"required"`
	FileSize   int64  `json:"file_size"`
	FileType   string `json:"file_type"`
	IsMainFile bool   `json:"is_main_file"`
	SortOrder  int    `json:"sort_order"`
	gorm.Model
}
